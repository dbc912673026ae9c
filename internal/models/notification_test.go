package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferenceAllowsType(t *testing.T) {
	var none *NotificationPreference
	assert.True(t, none.AllowsType(NotificationGradeAlert))

	pref := &NotificationPreference{GradeAlerts: true, PredictionAlerts: false}
	assert.True(t, pref.AllowsType(NotificationGradeAlert))
	assert.False(t, pref.AllowsType(NotificationPredictionAlert))
	assert.True(t, pref.AllowsType(NotificationType("unknown")))
}

func TestPreferenceAllowsChannel(t *testing.T) {
	var none *NotificationPreference
	assert.True(t, none.AllowsChannel(ChannelEmail))

	pref := &NotificationPreference{EmailEnabled: false, SMSEnabled: true}
	assert.False(t, pref.AllowsChannel(ChannelEmail))
	assert.True(t, pref.AllowsChannel(ChannelSMS))
	// in-app cannot be turned off
	assert.True(t, pref.AllowsChannel(ChannelInApp))
}
