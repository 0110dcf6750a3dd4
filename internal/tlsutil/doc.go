// Package tlsutil 提供集中式 TLS 配置，
// 供生成服务客户端（Google、Flux、Runway）与远程图像拉取复用。
package tlsutil
