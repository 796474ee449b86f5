// 版权所有 2024 MonitorFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 MonitorFlow 对外 HTTP 端口的生命周期。

API 端口（状态、检查点、周期历史与事件流）与 Prometheus metrics
端口各由一个 Manager 承载。Manager 封装 net/http.Server，提供
非阻塞启动、带超时的优雅关闭与异步错误通道；进程信号由 cmd
层通过 context 处理，不在本包内监听。

配置了证书与私钥时，API 端口使用 tlsutil 的加固配置以 HTTPS
提供服务。
*/
package server
