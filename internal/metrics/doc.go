// 版权所有 2024 MonitorFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的监控循环指标采集能力。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，所有指标按 namespace 隔离。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - 循环指标：循环次数（success/failed）、耗时、条目数、最近完成时间。
  - 拉取指标：按 source 统计拉取次数、条目数与耗时。
  - 评估指标：按 checking_point/result 统计评估次数与耗时，
    以及按错误类别统计被隔离的错误。
  - 动作指标：即时动作与 AI 子执行的次数、耗时与尝试次数。
  - 步骤指标：步骤执行次数、尝试次数、耗时、日志重放次数，
    以及熔断器状态 Gauge。
*/
package metrics
