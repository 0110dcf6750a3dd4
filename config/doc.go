// Package config 提供 MediaFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → MEDIAFLOW_ 环境变量 的顺序叠加，
// Watcher 在配置文件变更后重新加载并通知回调。
package config
