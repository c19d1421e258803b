package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/bacembenakkari/TalentCloud/internal/events"
)

// Message is a rendered email.
type Message struct {
	Subject string
	Body    string
}

const signature = "Best regards,\nThe TalentCloud Team"

func ProfileCreatedMessage(p events.ProfileCreated) Message {
	subject := "Welcome to TalentCloud! 🎉"
	if p.ProfileType == events.ProfileTypeClient {
		subject = "🎉 Welcome to TalentCloud as a Client!"
	}

	status := p.Status
	if strings.TrimSpace(status) == "" {
		status = "PENDING"
	}

	var b strings.Builder
	b.WriteString("Hello")
	if name := strings.TrimSpace(p.FirstName); name != "" {
		b.WriteString(" " + name)
	}
	b.WriteString("!\n\n")
	b.WriteString("Welcome to TalentCloud! 🎉\n\n")
	fmt.Fprintf(&b, "Thank you for creating your %s profile.\n", strings.ToLower(p.ProfileType))
	fmt.Fprintf(&b, "Your profile is currently under review and has a status of: %s\n\n", status)

	if p.ProfileType == events.ProfileTypeCandidate && strings.TrimSpace(p.JobTitle) != "" {
		fmt.Fprintf(&b, "We see you're interested in %s positions. ", p.JobTitle)
		b.WriteString("We'll notify you when relevant opportunities become available!\n\n")
	}

	b.WriteString("You'll receive another email once your profile has been reviewed.\n\n")
	b.WriteString(signature)

	return Message{Subject: subject, Body: b.String()}
}

func ProfileStatusMessage(p events.ProfileStatusChanged) Message {
	var b strings.Builder
	b.WriteString("Hello!\n\n")

	var subject string
	switch p.ProfileStatus {
	case "APPROVED":
		subject = "🎉 Your Profile Has Been Approved!"
		b.WriteString("Great news! 🎉\n\n")
		fmt.Fprintf(&b, "Your %s profile has been approved!\n", strings.ToLower(p.UserType))
		b.WriteString("You can now fully access all TalentCloud features.\n\n")
		if p.UserType == events.ProfileTypeCandidate {
			b.WriteString("You can now:\n")
			b.WriteString("- Apply for job positions\n")
			b.WriteString("- Connect with employers\n")
			b.WriteString("- Update your profile anytime\n\n")
		}
	case "REJECTED":
		subject = "❌ Profile Update Required"
		b.WriteString("Profile Review Update ❌\n\n")
		b.WriteString("Unfortunately, your profile needs some updates before it can be approved.\n\n")
	default:
		subject = "Profile Status Update"
	}

	if msg := strings.TrimSpace(p.Message); msg != "" {
		fmt.Fprintf(&b, "Message: %s\n\n", msg)
	}

	b.WriteString("If you have any questions, please don't hesitate to contact our support team.\n\n")
	b.WriteString(signature)

	return Message{Subject: subject, Body: b.String()}
}

func ApplicationSubmittedMessage(p events.ApplicationSubmitted) Message {
	title := strings.TrimSpace(p.JobTitle)
	if title == "" {
		title = "your job"
	}
	return Message{
		Subject: "📥 New Application Submitted",
		Body:    "There is someone that applied for your job: " + title,
	}
}

func ApplicationStatusMessage(p events.ApplicationStatusChanged) Message {
	switch strings.ToUpper(p.NewStatus) {
	case "ACCEPTED":
		return Message{
			Subject: "🎉 Congratulations - Application Accepted!",
			Body: fmt.Sprintf("Congratulations! Your application for '%s' has been accepted. "+
				"We look forward to having you on our team!", p.JobTitle),
		}
	case "REFUSED":
		return Message{
			Subject: "📝 Application Update",
			Body: fmt.Sprintf("Unfortunately, your application for '%s' has been refused. "+
				"We hope you find another job opportunity that suits you well.", p.JobTitle),
		}
	default:
		return Message{
			Subject: "📌 Application Status Changed",
			Body: fmt.Sprintf("Your application for '%s' has been updated from '%s' to '%s'.",
				p.JobTitle, p.OldStatus, p.NewStatus),
		}
	}
}

func JobOfferCreatedMessage(p events.JobOfferCreated) Message {
	postedAt := p.CreatedAt
	if postedAt.IsZero() {
		postedAt = time.Now().UTC()
	}
	return Message{
		Subject: "✅ Job Offer Created",
		Body: fmt.Sprintf("Your job offer '%s' has been successfully posted at %s.",
			p.JobTitle, postedAt.Format(time.RFC3339)),
	}
}
