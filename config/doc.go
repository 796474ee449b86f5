// Package config 提供 MonitorFlow 的配置管理功能。
//
// 配置由默认值、YAML 文件和环境变量依次叠加而成，
// 在进程启动时加载一次，不支持运行时热重载。
package config
