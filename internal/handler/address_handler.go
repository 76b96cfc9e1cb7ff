package handler

import (
	"github.com/gin-gonic/gin"

	"groupcart/internal/model"
	"groupcart/internal/service/address"
	"groupcart/pkg/utils"
)

// AddressHandler delivery address endpoints
type AddressHandler struct {
	addresses address.AddressService
}

// NewAddressHandler creates an address handler
func NewAddressHandler(addresses address.AddressService) *AddressHandler {
	return &AddressHandler{
		addresses: addresses,
	}
}

// Get returns the room's address, null when none is set
func (h *AddressHandler) Get(c *gin.Context) {
	utils.SuccessResponse(c, h.addresses.Get(c.Request.Context(), c.Param("roomId")))
}

// Set stores the room's address
func (h *AddressHandler) Set(c *gin.Context) {
	var req model.Address
	if !bindJSON(c, &req) {
		return
	}

	addr, err := h.addresses.Set(c.Request.Context(), c.Param("roomId"), req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, addr)
}
