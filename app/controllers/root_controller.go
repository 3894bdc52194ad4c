package controllers

import "net/http"

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSON(http.StatusOK, map[string]string{"Hello": "World", "And": "we are on..."})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

func (c *HealthController) Health() {
	c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
