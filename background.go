package main

import (
	"time"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"

	"github.com/joinguard/joinguard/config"
	"github.com/joinguard/joinguard/db"
	"github.com/joinguard/joinguard/model"
	"github.com/joinguard/joinguard/pkg/log"
	"github.com/joinguard/joinguard/service"
)

func GoBackgrounds(store *service.Store, eng *service.Engine) {
	retention := time.Duration(config.GetConfig().RetentionDays) * 24 * time.Hour

	// prune resolved records past the retention window
	go ExpireCleanBackground(model.BucketVerification, 1*time.Hour, func(b []byte, now time.Time) (expired bool) {
		var rec model.VerificationRecord
		if err := jsoniter.Unmarshal(b, &rec); err != nil {
			// invalid records are regarded as expired
			return true
		}
		return rec.Terminal() && !rec.ResolvedAt.IsZero() && now.Sub(rec.ResolvedAt) > retention
	})()

	// safety net: expire pending records whose deadline passed but whose
	// timer was lost
	go DeadlineReconcileBackground(store, eng, 1*time.Minute)()
}

func ExpireCleanBackground(bucket string, cleanInterval time.Duration, f func(b []byte, now time.Time) (expired bool)) func() {
	return func() {
		tick := time.Tick(cleanInterval)
		for now := range tick {
			if err := db.DB().Update(func(tx *bolt.Tx) error {
				bkt, err := tx.CreateBucketIfNotExists([]byte(bucket))
				if err != nil {
					return err
				}
				var listClean [][]byte
				if err = bkt.ForEach(func(k, b []byte) error {
					if f(b, now) {
						listClean = append(listClean, k)
					}
					return nil
				}); err != nil {
					return err
				}
				for _, k := range listClean {
					if err = bkt.Delete(k); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				log.Warn("Clean bucket %v: %v", bucket, err)
			}
		}
	}
}

func DeadlineReconcileBackground(store *service.Store, eng *service.Engine, interval time.Duration) func() {
	return func() {
		tick := time.Tick(interval)
		for now := range tick {
			recs, err := store.ListExpiringBefore(now)
			if err != nil {
				log.Warn("deadline reconcile: %v", err)
				continue
			}
			for _, rec := range recs {
				if err := eng.OnTimeout(rec.Key()); err != nil {
					log.Warn("deadline reconcile %v: %v", rec.Key(), err)
				}
			}
		}
	}
}
