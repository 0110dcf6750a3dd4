// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 MediaFlow 服务端程序入口。

# 概述

cmd/mediaflow 提供生成 API 服务、数据库迁移、健康检查和版本查询等
子命令。程序支持 YAML 配置文件加载、结构化日志（zap）、Prometheus
指标采集以及日志级别热更新。

# 核心类型

  - Server：组装数据库、Redis、生成后端、编排器与后台任务执行器，
    管理 HTTP 与 Metrics 双端口及优雅关闭
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、version、health
  - 中间件链：Recovery、RequestID、OTelTracing、MetricsMiddleware、
    SecurityHeaders、RequestLogger、RateLimiter（基于 IP）、APIKeyAuth
  - 优雅关闭：信号监听，停止接收请求，等待后台生成任务写回结果，
    再关闭 Metrics、Redis 与数据库
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
