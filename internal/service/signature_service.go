package service

import (
	"context"
	"fmt"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
)

type SignatureService interface {
	Create(ctx context.Context, userID int64, name, content string, isDefault bool) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Signature, error)
	Update(ctx context.Context, userID, id int64, name, content string) error
	SetDefault(ctx context.Context, userID, id int64) error
	Remove(ctx context.Context, userID, id int64) error
}

type signatureService struct {
	sr repository.SignatureRepository
}

func NewSignatureService(sr repository.SignatureRepository) SignatureService {
	return &signatureService{
		sr: sr,
	}
}

func (s *signatureService) Create(ctx context.Context, userID int64, name, content string, isDefault bool) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: name is required", ErrValidation)
	}

	sig := &models.Signature{
		UserID:  userID,
		Name:    name,
		Content: content,
	}
	id, err := s.sr.Create(ctx, sig)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Promotion goes through the transactional path so the one-default
	// invariant holds even when the new signature should be default.
	if isDefault {
		if err := s.sr.SetDefault(ctx, userID, id); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	return id, nil
}

func (s *signatureService) List(ctx context.Context, userID int64) ([]*models.Signature, error) {
	signatures, err := s.sr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return signatures, nil
}

func (s *signatureService) Update(ctx context.Context, userID, id int64, name, content string) error {
	owned, err := s.sr.CheckByUserID(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !owned {
		return ErrNotFound
	}

	sig := &models.Signature{
		ID:      id,
		Name:    name,
		Content: content,
	}
	if err := s.sr.Update(ctx, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *signatureService) SetDefault(ctx context.Context, userID, id int64) error {
	owned, err := s.sr.CheckByUserID(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !owned {
		return ErrNotFound
	}

	if err := s.sr.SetDefault(ctx, userID, id); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *signatureService) Remove(ctx context.Context, userID, id int64) error {
	owned, err := s.sr.CheckByUserID(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !owned {
		return ErrNotFound
	}

	if err := s.sr.Remove(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
