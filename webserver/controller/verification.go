package controller

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joinguard/joinguard/common"
	"github.com/joinguard/joinguard/model"
	"github.com/joinguard/joinguard/service"
)

var store *service.Store

func SetStore(s *service.Store) {
	store = s
}

func GetStats(ctx *gin.Context) {
	report, err := service.BuildStats(store, 24*time.Hour, 10)
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	common.ResponseSuccess(ctx, report)
}

func GetPending(ctx *gin.Context) {
	recs, err := store.ListByState(model.StateAwaitingAnswer, 50)
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	common.ResponseSuccess(ctx, gin.H{"Records": recs})
}

func GetRecentDecisions(ctx *gin.Context) {
	recs, err := store.ListRecentDecisions(50)
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	common.ResponseSuccess(ctx, gin.H{"Records": recs})
}
