package server

import "strings"

// Message is a heading and explanation shown for an error code.
type Message struct {
	Heading string
	Message string
}

const (
	messageCategorySignIn = "signin-error"
	messageCategoryAuth   = "auth-error"
)

var messages = map[string]map[string]Message{
	messageCategorySignIn: {
		errorVerification: {
			Heading: "Sign-in failed",
			Message: "The sign-in request could not be verified. Please try again.",
		},
		errorSignIn: {
			Heading: "Sign-in unavailable",
			Message: "The identity provider could not be reached. Please try again later.",
		},
		"": {
			Heading: "Sign-in failed",
			Message: "An unexpected error occurred while signing in.",
		},
	},
	messageCategoryAuth: {
		errorCallback: {
			Heading: "Authentication failed",
			Message: "The response from the identity provider could not be processed. Please sign in again.",
		},
		"configuration": {
			Heading: "Server error",
			Message: "There is a problem with the server configuration.",
		},
		"accessdenied": {
			Heading: "Access denied",
			Message: "You do not have permission to sign in.",
		},
		"": {
			Heading: "Authentication error",
			Message: "An unexpected error occurred. Please try again.",
		},
	},
}

// getMessage returns the message for code within category, falling back to
// the category default for unknown codes.
func getMessage(code, category string) Message {
	byCode, ok := messages[category]
	if !ok {
		byCode = messages[messageCategoryAuth]
	}
	if m, ok := byCode[strings.ToLower(code)]; ok {
		return m
	}
	return byCode[""]
}
