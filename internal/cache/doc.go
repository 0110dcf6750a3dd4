// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 封装服务共享的 Redis 连接。

# 概述

Manager 负责 go-redis 客户端的初始化、定时探活与关闭，对外暴露
Client() 供 idempotency 包占用幂等键，并提供带前缀的 GetJSON /
SetJSON / Delete，用于缓存已结束的生成任务，减少对数据库的读取。
开启 TLS 时使用 tlsutil.DefaultTLSConfig。

# 核心类型

  - Manager：Ping、GetStats（连接池统计）、Close。
  - Config：地址、密码、库号、键前缀、默认 TTL、连接池与健康检查间隔。
  - ErrCacheMiss / ErrClosed：未命中与已关闭。
*/
package cache
