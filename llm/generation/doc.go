// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 generation 是生成任务的编排层，把一个 GenerationRequest 变成交付的产物。

# 概述

Orchestrator.Submit 按 Modality 分派：

  - IMAGE：输入图像先经 image.Normalizer 规范化，再并发生成
    VariantCount 个变体；全部失败时返回 GENERATION_FAILED。
  - VIDEO：每个分支 Start 后由 Poller 每 5 秒查询一次，直到 DONE、
    FAILED 或 MaxWait。所有分支都失败时降级为一张静帧图像
    （提示词加前缀 "Cinematic still frame, "，输入素材原样带入）；
    降级也失败时返回 *CombinedError，其主因是视频阶段的错误。
  - AUDIO：TTS 返回的 PCM 分片拼接后封装为 44 字节头的 WAV。
  - ANALYSIS / TRANSCRIBE：只接受内嵌媒体，远程引用在任何调用前拒绝。

# 并发

FanOut 为每个变体启动一个分支，等待全部结束，结果按下标排序。
一个分支失败不会取消其它分支。所有请求共享同一个 pool.BranchPool，
它限制了进程内同时在途的上游调用数。

每个分支的每次上游调用都经 retry 包的退避执行器：最多 3 次尝试，
基础延迟 2 秒，纯指数、无抖动，只重试过载类错误。
*/
package generation
