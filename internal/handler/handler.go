package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"groupcart/pkg/utils"
)

// Broadcaster pushes realtime events to a room
type Broadcaster interface {
	Broadcast(roomID, event string, data interface{})
}

// bindJSON decodes and validates the body, answering 400 on failure
func bindJSON(c *gin.Context, v interface{}) bool {
	utils.RegisterCustomValidators()
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		utils.ErrorFrom(c, utils.ValidateStruct(v))
		return false
	}
	utils.Error(c, utils.CodeInvalidParam, "Invalid request body")
	return false
}
