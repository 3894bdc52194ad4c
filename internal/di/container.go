package di

import (
	"go.uber.org/dig"
)

// Container 是依赖注入容器的全局实例
var Container *dig.Container

// InitContainer 初始化依赖注入容器
func InitContainer() *dig.Container {
	Container = dig.New()
	return Container
}

// GetContainer 获取依赖注入容器实例
func GetContainer() *dig.Container {
	return Container
}

// Invoke 封装dig.Invoke
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}

// Provide 封装dig.Provide
func Provide(constructor interface{}, opts ...dig.ProvideOption) error {
	return Container.Provide(constructor, opts...)
}

// Cleanup 收集需要在退出时释放的资源
type Cleanup struct {
	tasks []func() error
}

// Add 登记一个释放函数
func (c *Cleanup) Add(task func() error) {
	c.tasks = append(c.tasks, task)
}

// Run 逆序执行释放函数，返回遇到的第一个错误
func (c *Cleanup) Run() error {
	var first error
	for i := len(c.tasks) - 1; i >= 0; i-- {
		if err := c.tasks[i](); err != nil && first == nil {
			first = err
		}
	}
	c.tasks = nil
	return first
}
