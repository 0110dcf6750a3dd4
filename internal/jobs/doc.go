// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package jobs 在后台执行已受理的生成任务，并把结果写回任务记录。
// Runner.Drain 注册为 HTTP 服务的关闭钩子，保证进程退出前在途任务结束或被取消。
package jobs
