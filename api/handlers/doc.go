// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 MediaFlow HTTP API 的请求处理器实现。

# 概述

生成接口是异步的：POST /v1/generations 写入 PENDING 记录并交给后台
执行器，立即返回 202 与 Location；客户端通过 GET /v1/generations/{id}
轮询任务状态。所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - GenerationHandler：提交、查询与列出生成任务
  - HealthHandler：/health、/healthz、/ready 与 /version
  - Response / ErrorInfo：统一 JSON 响应结构
  - ResponseWriter：捕获状态码与响应大小，供中间件使用

# 幂等

携带 Idempotency-Key 的重复提交返回 200 与首次创建的任务，并带上
Idempotent-Replayed: true。相同键对应不同请求体时返回 422；键已被
占用但记录尚未写入时返回 409。

# 缓存

已结束（SUCCEEDED 或 FAILED）的任务视图写入 ResultCache，未结束的
任务总是读库。
*/
package handlers
