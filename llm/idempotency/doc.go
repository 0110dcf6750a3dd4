// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 idempotency 将客户端的 Idempotency-Key 绑定到生成任务 ID。

Redis 实现通过 SETNX 原子占用键，多实例部署共享同一份映射；
未配置 Redis 时使用进程内的 MemoryManager。条目中的 Fingerprint
用于拒绝以同一键提交的不同请求体。
*/
package idempotency
