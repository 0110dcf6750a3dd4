// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 history 持久化生成任务记录（generation_records 表）。

记录生命周期为 PENDING → RUNNING → SUCCEEDED | FAILED。成功结果以
JSON 文本保存，读取时通过 Record.DecodeResult 还原。postgres 的表结构由
migration 包维护，sqlite 部署在启动时调用 Store.AutoMigrate。
*/
package history
