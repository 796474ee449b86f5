// 版权所有 2024 MonitorFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理审计库（AI 子执行结果与监控周期摘要）的 Schema 迁移，
支持 PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 文件通过 embed.FS 内嵌在二进制中，位于
migrations/<dialect>/NNNNNN_name.{up,down}.sql。SQLite 使用纯 Go 的
modernc 驱动，无需 CGO。

# 核心类型

  - Migrator / DefaultMigrator：Up、Down、DownAll、Steps、Goto、Force、
    Version、Status、Info、Close。
  - CLI：`monitorflow migrate <command>` 的终端输出层，Run 按子命令分派。
  - NewMigratorFromDatabaseConfig：由 config.DatabaseConfig 创建迁移器。
*/
package migration
