// Package app 收纳三个服务入口共享的启动流程：日志、配置、路由骨架与优雅退出。
package app
