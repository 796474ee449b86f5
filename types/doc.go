// Copyright (c) MonitorFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 MonitorFlow 调度核心的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 scheduler、cmd 等上层
模块提供统一的数据契约：监控数据、检查结果、即时动作、AI 动作以及
AI 子执行的输入与结果。所有跨包共享的结构体、枚举和错误码均定义于此，
以避免循环依赖。

# 核心类型

  - MonitoringData: 单个监控条目（id / type / source / data）
  - CheckResult: 检查点对单个条目的评估结果
  - Action: 即时动作（notification / status_update / api_call / webhook）
  - AIAction: 声明式 AI 动作，由检查点的后处理钩子产生
  - AIWorkflowInput: AI 子执行输入
  - AIWorkflowResult: AI 子执行的最终不可变结果
  - Error / ErrorCode: 结构化错误体系（SOURCE_FETCH / EVALUATION / DISPATCH / CYCLE / FATAL）

# 主要能力

  - Context 传播：WithCycleID / WithItemID / WithCheckpoint / WithTraceID
  - 错误工具链：NewError / IsFatal / IsRetryable / GetErrorCode
  - 数据访问：MonitoringData.Field 支持点号路径
*/
package types
