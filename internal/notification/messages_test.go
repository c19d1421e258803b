package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bacembenakkari/TalentCloud/internal/events"
)

func TestProfileCreatedMessage_Candidate(t *testing.T) {
	msg := ProfileCreatedMessage(events.ProfileCreated{
		FirstName:   "Jane",
		ProfileType: events.ProfileTypeCandidate,
		JobTitle:    "Backend Engineer",
	})

	assert.Equal(t, "Welcome to TalentCloud! 🎉", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Jane!\n\nWelcome to TalentCloud! 🎉\n\n")
	assert.Contains(t, msg.Body, "Thank you for creating your candidate profile.\n")
	assert.Contains(t, msg.Body, "has a status of: PENDING\n")
	assert.Contains(t, msg.Body, "We see you're interested in Backend Engineer positions. ")
	assert.True(t, len(msg.Body) > 0 && msg.Body[len(msg.Body)-len(signature):] == signature)
}

func TestProfileCreatedMessage_ClientWithoutName(t *testing.T) {
	msg := ProfileCreatedMessage(events.ProfileCreated{
		ProfileType: events.ProfileTypeClient,
		Status:      "PENDING",
		JobTitle:    "ignored for clients",
	})

	assert.Equal(t, "🎉 Welcome to TalentCloud as a Client!", msg.Subject)
	assert.Contains(t, msg.Body, "Hello!\n\n")
	assert.NotContains(t, msg.Body, "interested in")
}

func TestProfileStatusMessage(t *testing.T) {
	tests := []struct {
		name        string
		event       events.ProfileStatusChanged
		subject     string
		contains    []string
		notContains []string
	}{
		{
			name:     "approved candidate",
			event:    events.ProfileStatusChanged{UserType: "CANDIDATE", ProfileStatus: "APPROVED"},
			subject:  "🎉 Your Profile Has Been Approved!",
			contains: []string{"Your candidate profile has been approved!", "- Apply for job positions"},
		},
		{
			name:        "approved client",
			event:       events.ProfileStatusChanged{UserType: "CLIENT", ProfileStatus: "APPROVED"},
			subject:     "🎉 Your Profile Has Been Approved!",
			contains:    []string{"Your client profile has been approved!"},
			notContains: []string{"- Apply for job positions"},
		},
		{
			name:     "rejected with reason",
			event:    events.ProfileStatusChanged{UserType: "CANDIDATE", ProfileStatus: "REJECTED", Message: "❌ Your profile has been rejected. Reason: missing CV"},
			subject:  "❌ Profile Update Required",
			contains: []string{"Profile Review Update ❌", "Message: ❌ Your profile has been rejected. Reason: missing CV\n\n"},
		},
		{
			name:        "other status",
			event:       events.ProfileStatusChanged{ProfileStatus: "PENDING"},
			subject:     "Profile Status Update",
			contains:    []string{"Hello!\n\nIf you have any questions"},
			notContains: []string{"Message:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ProfileStatusMessage(tt.event)
			assert.Equal(t, tt.subject, msg.Subject)
			for _, s := range tt.contains {
				assert.Contains(t, msg.Body, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, msg.Body, s)
			}
		})
	}
}

func TestApplicationStatusMessage(t *testing.T) {
	refused := ApplicationStatusMessage(events.ApplicationStatusChanged{JobTitle: "Backend Engineer", NewStatus: "refused"})
	assert.Equal(t, "📝 Application Update", refused.Subject)
	assert.Contains(t, refused.Body, "'Backend Engineer' has been refused")

	other := ApplicationStatusMessage(events.ApplicationStatusChanged{JobTitle: "Backend Engineer", OldStatus: "SUBMITTED", NewStatus: "UNDER_REVIEW"})
	assert.Equal(t, "📌 Application Status Changed", other.Subject)
	assert.Equal(t, "Your application for 'Backend Engineer' has been updated from 'SUBMITTED' to 'UNDER_REVIEW'.", other.Body)
}

func TestApplicationSubmittedMessage(t *testing.T) {
	msg := ApplicationSubmittedMessage(events.ApplicationSubmitted{JobTitle: "Backend Engineer"})
	assert.Equal(t, "There is someone that applied for your job: Backend Engineer", msg.Body)
}
