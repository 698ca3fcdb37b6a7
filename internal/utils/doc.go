// Package utils 收纳与业务无关的小工具（日志脱敏）。
package utils
