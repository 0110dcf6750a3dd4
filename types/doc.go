// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 MediaFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、api、internal
等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - GenerationRequest：一次生成请求（模态、模型、后端、输入素材、变体数）
  - Asset / NormalizedAsset：输入素材及其规范化形式
  - Artifact / GenerationResult：交付的媒体与结果
  - Modality / Provider：模态与后端族，ResolveProvider 按模型名推断后端
  - Error / ErrorCode：结构化错误，含 HTTP 状态码、Retryable 与 Provider 标记

# 错误工具

AsError、GetErrorCode 读取最外层 *Error；IsErrorCode 沿 Cause 链查找；
NewUpstreamError 把后端 HTTP 状态码映射为错误码并标记可重试性。
*/
package types
