package models

import (
	"strconv"

	"github.com/julianstephens/tally/internal/constants"
)

// MapToClientState converts a map of key-value pairs to a ClientState struct.
func MapToClientState(data map[string]string) ClientState {
	state := ClientState{}

	for key, value := range data {
		switch key {
		case constants.SettingGuestMode:
			state.GuestMode, _ = strconv.ParseBool(value)
		case constants.SettingSessionScope:
			state.SessionScope = value
		}
	}
	return state
}

// ClientStateToMap converts a ClientState struct to a map of key-value pairs.
func ClientStateToMap(state ClientState) map[string]string {
	return map[string]string{
		constants.SettingGuestMode:    strconv.FormatBool(state.GuestMode),
		constants.SettingSessionScope: state.SessionScope,
	}
}
