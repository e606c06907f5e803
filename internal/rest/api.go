package rest

import "github.com/gin-gonic/gin"

func NewApi(router *gin.Engine, images *ImageHandler) {
	router.GET("/img", images.GetImage)
}
