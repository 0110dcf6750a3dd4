// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 speech 提供语音合成 Provider 与 WAV 容器封装。

# 概述

生成服务返回的是裸 PCM 分片（16-bit、little-endian、单声道）。
Synthesizer 负责取回分片，EncodeWAV 负责把分片拼接并加上标准
44 字节 RIFF/WAVE 头，得到可直接播放的 audio/wav 产物。

# 核心接口

  - Synthesizer：Synthesize 与 Name。
  - GeminiSynthesizer：通过 google.golang.org/genai 的 AUDIO 响应模态合成语音。
  - EncodeWAV：纯函数，相同输入产生逐字节相同的输出。
*/
package speech
