// Package services 提供应用的领域服务层：分类/标签/失物招领的数据访问、相似度排序、
// 拍卖出价以及账户与令牌。handlers 只通过本层访问存储与外部依赖。
package services
