// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 multimodal 提供媒体理解（分析、转写）能力与按 Provider 族划分的
后端注册表。

# 核心接口

  - Analyzer：Analyze（图像/音频/视频问答）与 Transcribe（语音转写）。
  - GeminiAnalyzer：基于 google.golang.org/genai，仅接受内嵌字节。
  - MediaFromAsset：把请求资产转为内嵌媒体，远程 URL 直接拒绝。
  - Router：types.Provider → 各能力后端的注册表，启动时装配，
    运行期只读，由 llm/generation 的编排器查询。
*/
package multimodal
