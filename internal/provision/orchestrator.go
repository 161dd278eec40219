// Package provision orchestrates pushing one user onto a batch of printers.
// Devices are processed sequentially because each call carries per-device
// session state and rotating tokens; a busy device is retried on a bounded
// schedule, and no single device failure aborts the rest of the batch.
package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
	"github.com/Seiiyes/ricoh/internal/secrets"
	"github.com/Seiiyes/ricoh/internal/webui"
)

// ProtocolClient is the device-facing side of provisioning.
type ProtocolClient interface {
	ProvisionUser(ctx context.Context, addr string, target models.ProvisioningTarget) webui.Outcome
}

// Service coordinates provisioning batches.
type Service struct {
	db     *database.DB
	client ProtocolClient
	cipher *secrets.Cipher
	policy RetryPolicy
	logger zerolog.Logger
}

// New creates a provisioning service. The cipher decrypts stored network
// folder passwords just before submission; it may be nil when no users
// carry passwords.
func New(db *database.DB, client ProtocolClient, cipher *secrets.Cipher, policy RetryPolicy) *Service {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Service{
		db:     db,
		client: client,
		cipher: cipher,
		policy: policy,
		logger: log.With().Str("component", "provision").Logger(),
	}
}

// ProvisionUserToPrinters pushes one user onto each listed printer in order.
// The returned batch result records the terminal outcome per device; an
// error return means the batch could not start at all.
func (s *Service) ProvisionUserToPrinters(ctx context.Context, userID int64, printerIDs []int64) (*models.BatchProvisionResult, error) {
	user, err := s.db.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	target, err := s.buildTarget(user)
	if err != nil {
		return nil, err
	}

	result := &models.BatchProvisionResult{
		BatchID:       uuid.New().String(),
		UserID:        user.ID,
		UserName:      user.Name,
		ProvisionedAt: time.Now(),
	}

	s.logger.Info().
		Str("batchId", result.BatchID).
		Str("user", user.Name).
		Int("printers", len(printerIDs)).
		Msg("Starting provisioning batch")

	for _, printerID := range printerIDs {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("printer %d: batch cancelled: %v", printerID, err))
			continue
		}

		printer, err := s.db.GetPrinter(printerID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("printer %d: %v", printerID, err))
			continue
		}

		outcome := s.provisionDevice(ctx, printer.IPAddress, target)
		if outcome.Status != webui.StatusSuccess {
			result.Errors = append(result.Errors,
				fmt.Sprintf("printer %s (%s): %s", printer.Hostname, printer.IPAddress, outcome.Reason))
			continue
		}

		if err := s.db.CreateAssignment(user.ID, printer.ID); err != nil {
			s.logger.Error().Err(err).
				Int64("printerId", printer.ID).
				Msg("Provisioned but failed to record assignment")
		}
		result.PrinterIDs = append(result.PrinterIDs, printer.ID)
		result.Provisioned++
	}

	result.Success = result.Provisioned > 0
	if result.Success {
		result.Message = fmt.Sprintf("Provisioned %s to %d of %d printers", user.Name, result.Provisioned, len(printerIDs))
	} else {
		result.Message = fmt.Sprintf("Failed to provision %s to any printer", user.Name)
	}

	s.logger.Info().
		Str("batchId", result.BatchID).
		Int("provisioned", result.Provisioned).
		Int("failed", len(result.Errors)).
		Msg("Provisioning batch finished")

	return result, nil
}

// provisionDevice runs the retry loop for one device. Only a busy outcome
// is retried; after the attempt budget is spent the busy state is reported
// as a failure.
func (s *Service) provisionDevice(ctx context.Context, addr string, target models.ProvisioningTarget) webui.Outcome {
	var outcome webui.Outcome
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			s.logger.Info().
				Str("device", addr).
				Int("attempt", attempt).
				Dur("delay", s.policy.Delay).
				Msg("Device busy, retrying after delay")
			if err := s.policy.wait(ctx); err != nil {
				return webui.Outcome{Status: webui.StatusFailure, Reason: fmt.Sprintf("cancelled while waiting to retry: %v", err)}
			}
		}

		outcome = s.client.ProvisionUser(ctx, addr, target)
		if outcome.Status != webui.StatusBusy {
			return outcome
		}
	}

	return webui.Outcome{
		Status: webui.StatusFailure,
		Reason: fmt.Sprintf("device still busy after %d attempts: %s", s.policy.MaxAttempts, outcome.Reason),
	}
}

// buildTarget assembles the device payload, decrypting the stored network
// password at the last moment.
func (s *Service) buildTarget(user *models.User) (models.ProvisioningTarget, error) {
	target := models.ProvisioningTarget{
		Name:            user.Name,
		UserCode:        user.UserCode,
		NetworkUsername: user.NetworkUsername,
		Functions:       user.Functions,
		Folder:          user.Folder,
	}

	if user.EncryptedPassword != "" {
		if s.cipher == nil {
			return target, fmt.Errorf("user %s has an encrypted password but no cipher is configured", user.Name)
		}
		password, err := s.cipher.Decrypt(user.EncryptedPassword)
		if err != nil {
			return target, fmt.Errorf("failed to decrypt network password for %s: %w", user.Name, err)
		}
		target.NetworkPassword = password
	}

	return target, nil
}
