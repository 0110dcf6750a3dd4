// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理 generation_records 表的版本化 Schema 迁移，
基于 golang-migrate 实现，仅面向 PostgreSQL。

# 概述

迁移文件以 embed.FS 内嵌（migrations/postgres），通过 iofs 源驱动
与 postgres 数据库驱动交给 golang-migrate 执行。SQLite 单机部署不走
本包，由 history.Store 在启动时调用 GORM AutoMigrate 建表。

# 核心类型

  - Migrator：Up/Down/Steps/Force/Version/Status/Info/Ledger/Close。
  - DefaultMigrator：封装 migrate.Migrate 与底层 *sql.DB。
  - LedgerInfo：generation_records 是否存在及各状态行数。
*/
package migration
