package common

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type Code string

const (
	SUCCESS Code = "SUCCESS"
	FAIL    Code = "FAIL"
)

var BadRequestErr = fmt.Errorf("bad request")

func Response(ctx *gin.Context, code Code, data interface{}) {
	if code == FAIL {
		switch data := data.(type) {
		case string:
			ctx.JSON(200, gin.H{
				"Code":    code,
				"Message": data,
				"Data":    nil,
			})
		default:
			ctx.JSON(200, gin.H{
				"Code":    code,
				"Message": nil,
				"Data":    data,
			})
		}
		return
	}
	ctx.JSON(200, gin.H{
		"Code":    code,
		"Message": nil,
		"Data":    data,
	})
}

func ResponseError(ctx *gin.Context, err error) {
	Response(ctx, FAIL, err.Error())
}

func ResponseBadRequestError(ctx *gin.Context) {
	Response(ctx, FAIL, BadRequestErr.Error())
}

func ResponseSuccess(ctx *gin.Context, data interface{}) {
	Response(ctx, SUCCESS, data)
}
