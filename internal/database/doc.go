// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 打开生成记录所用的数据库并管理连接池。

# 概述

Open 按 config.DatabaseConfig.Driver 选择 GORM 方言：postgres 用于生产，
sqlite（github.com/glebarez/sqlite，纯 Go 实现）用于单机部署与测试。
PoolManager 配置 database/sql 连接池，后台定时探活，并把 ping 与事务
耗时上报到 metrics.Collector。

# 核心类型

  - PoolManager：DB()、Ping()、Stats()、WithTransaction()、Close()。
  - PoolConfig：最大空闲连接数、最大打开连接数、连接最大生命周期与健康检查间隔。
*/
package database
