// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 提供图像生成 Provider 与输入图像格式归一化。

# 概述

生成服务只接受 PNG/JPEG 内嵌负载。Normalizer 负责把任意来源
（data URI、原始字节、远程 URL）的图像转换为 (raw bytes, mime)：
已合规的内嵌负载原样透传，其余一律解码后重新编码为 PNG。
转换失败统一返回 CONVERSION_FAILED 错误，不参与重试。

# 核心接口

  - Provider：Generate 与 Name 两个方法，单次调用返回一张图。
  - GeminiProvider：Google 生成服务（Gemini 图像模型 / Imagen），
    通过 google.golang.org/genai 调用。
  - FluxProvider：Black Forest Labs Flux，异步提交 + 轮询。
  - Normalizer：输入图像归一化。
*/
package image
