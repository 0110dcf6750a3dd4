// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start / Shutdown / WaitForShutdown。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与优雅关闭超时。

# 关闭顺序

Shutdown 先停止接收新请求并排空在途请求，再依次执行通过 OnDrain
注册的函数（例如等待后台生成任务结束），全部共享同一个关闭时限。
*/
package server
