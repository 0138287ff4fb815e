package booking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// HandleUpload attaches an uploaded file to the chat's last booking. Uploads
// outside the report-upload step are silently ignored.
func (e *Engine) HandleUpload(ctx context.Context, chatID int64, fileID, fileName string) error {
	ctx, span := bookingTracer.Start(ctx, "booking.handle_upload")
	defer span.End()
	span.SetAttributes(attribute.Int64("brightcare.chat_id", chatID))

	state, err := e.states.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("booking: load state: %w", err)
	}
	if state.Step != StepAwaitingReportUpload || state.LastAppointmentID == "" {
		return nil
	}
	if e.files == nil || e.reports == nil {
		e.logger.Warn("booking: report upload without storage configured", "chat_id", chatID)
		return nil
	}

	data, err := e.files.FetchFile(ctx, fileID)
	if err != nil {
		e.logger.Error("booking: report download failed", "chat_id", chatID, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't save your report. Please try sending it again.", nil)
		return nil
	}
	if fileName == "" {
		fileName = fmt.Sprintf("report_%d.jpg", e.now().UnixMilli())
	}

	link, err := e.reports.Save(ctx, state.LastAppointmentID, fileName, data)
	if err != nil {
		e.logger.Error("booking: report save failed", "appointment_id", state.LastAppointmentID, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't save your report. Please try sending it again.", nil)
		return nil
	}

	appt, err := e.store.GetByID(ctx, state.LastAppointmentID)
	if err != nil {
		e.logger.Error("booking: report attach failed", "appointment_id", state.LastAppointmentID, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't attach the report to your booking. Please try again.", nil)
		return nil
	}
	appt.MedicalReportLink = link
	if err := e.store.Update(ctx, appt); err != nil {
		e.logger.Error("booking: report attach failed", "appointment_id", appt.ID, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't attach the report to your booking. Please try again.", nil)
		return nil
	}

	state.Step = StepIdle
	if err := e.states.Put(ctx, chatID, state); err != nil {
		return fmt.Errorf("booking: save state: %w", err)
	}
	e.send(ctx, chatID, "Report received. The doctor will review it before your visit. See you soon!", nil)
	e.notifyStaff(ctx, fmt.Sprintf("Report uploaded for %s (%s): %s", appt.ID, appt.PatientName, link))
	return nil
}

// DiskReportStore writes reports under a base directory and assembles a
// public link from the server's base URL.
type DiskReportStore struct {
	Dir     string
	BaseURL string
}

// Save writes the file as <appointmentID>_<sanitized name> and returns its
// public URL under /reports/.
func (s *DiskReportStore) Save(_ context.Context, appointmentID, fileName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("reports: create dir: %w", err)
	}
	name := appointmentID + "_" + sanitizeFileName(fileName)
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("reports: write file: %w", err)
	}
	return strings.TrimSuffix(s.BaseURL, "/") + "/reports/" + name, nil
}

// sanitizeFileName keeps uploads from escaping the reports directory or
// breaking the URL.
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		out = "report"
	}
	return out
}
