/*
Package testutil 提供 MonitorFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为调度器各阶段的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 退避替身: NoSleep 替换重试与循环的等待函数
  - 事件辅助: WaitForEvent / DrainEvents / EventTypes，读取 events.Hub 订阅
  - 数据工具: MustJSON / MustParseJSON / WaitForChannel

# 子包

  - testutil/mocks: 检查点、即时动作分发器、AI 子执行器与编排服务的模拟实现，
    支持错误注入与调用顺序记录
  - testutil/fixtures: 监控条目、检查结果、AI 动作与 AI 子执行结果的样例

# 使用示例

	ctx := testutil.TestContext(t)
	cp := mocks.NewMockCheckingPoint("urgent").WithMatch(0.9)
	report := m.ProcessItem(ctx, fixtures.UrgentTask("task-1"))
*/
package testutil
