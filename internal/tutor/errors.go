package tutor

import (
	"errors"

	"github.com/ashureev/tutor-client/internal/state"
)

// Errors returned by Controller methods. All of them are reported before
// anything is transmitted and leave the state unchanged.
var (
	ErrEmptyMessage        = errors.New("message is empty")
	ErrEmptyTopic          = errors.New("topic is empty")
	ErrNotConnected        = errors.New("not connected to the tutor")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrAlreadySignedIn     = errors.New("already signed in")

	ErrSignedOut       = state.ErrSignedOut
	ErrInvalidView     = state.ErrInvalidView
	ErrBusy            = state.ErrBusy
	ErrNoAssessment    = state.ErrNoAssessment
	ErrNoAnswers       = state.ErrNoAnswers
	ErrUnknownQuestion = state.ErrUnknownQuestion
	ErrUnknownOption   = state.ErrUnknownOption
)
