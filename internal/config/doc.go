// Package config 负责加载与解析进程配置，支持 YAML/JSON 配置文件与默认值合并，
// 机密字段可由环境变量（含 .env）覆盖。三个服务共用同一配置结构。
package config
