package model

import (
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
)

type Swipe struct {
	ActorUserID  int64          `json:"actor_user_id"`
	TargetUserID int64          `json:"target_user_id"`
	Decision     enums.Decision `json:"decision"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SwipeUpsert reports what an upsert did to the (actor, target) record.
type SwipeUpsert struct {
	Swipe    Swipe
	Previous enums.Decision
	Changed  bool
}
