// 版权所有 2024 MonitorFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开审计库并管理其连接池。

# 概述

Open 按 config.DatabaseConfig 的 driver 选择 GORM 方言（postgres、mysql、
sqlite），随后交给 PoolManager 统一配置连接池、后台探活与关闭。
审计库只记录 AI 子执行结果与周期摘要，监控循环不依赖它的可用性。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB、Ping、Stats、Close。
  - PoolConfig：最大空闲/打开连接数、连接生命周期与探活间隔。
  - TransactionFunc：事务回调。
*/
package database
