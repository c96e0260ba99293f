package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StudyGoal string    `json:"study_goal"`
	CreatedAt time.Time `json:"created_at"`
}

type UpdateUserRequest struct {
	Name      *string `json:"name"`
	StudyGoal *string `json:"study_goal"`
}
