// Package service 提供业务逻辑层
package service

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层通过此结构访问业务层
// 各实现位于子包（message/user/group），在 main 中完成装配
type Services struct {
	Message MessageService
	User    UserService
	Group   GroupService
}
