// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 video 提供异步视频生成 Provider，适配 Google Veo 与 Runway ML。

# 概述

视频生成是长耗时任务：Provider.Start 提交任务并立即返回 Operation
句柄，Provider.Query 刷新一次任务状态（RUNNING / DONE / FAILED），
本包不做等待。轮询节奏、超时上限与重试由 llm/generation 的 Poller
与退避执行器负责。

# 核心接口

  - Provider：Start、Query、Name 三个方法。
  - Operation：不透明任务句柄，仅创建它的 Provider 能刷新。
  - VeoProvider：通过 google.golang.org/genai 的 GenerateVideos /
    GetVideosOperation 调用 Veo。
  - RunwayProvider：Runway REST API，text_to_video 与 image_to_video。
*/
package video
