// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、生成任务、
分支池、幂等缓存与历史库。

# 概述

Collector 使用 promauto 自动注册，所有指标按 namespace 隔离。
Record 方法对 nil 接收者安全，未启用指标时调用方无需判空。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 生成指标：按 modality/provider 统计请求数与耗时，分支成功/失败、
    退避重试次数、降级链结果、长任务轮询次数。
  - 分支池：活跃与等待中的分支数 Gauge。
  - 缓存与数据库：幂等缓存命中率、历史库查询耗时。
*/
package metrics
