package usecase

import (
	"context"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	domsvc "MarketState/internal/domain/service"
)

// AnalysesUsecase manages stored analyses and their feedback.
type AnalysesUsecase struct {
	store domrepo.AnalysisStore
}

func NewAnalysesUsecase(store domrepo.AnalysisStore) *AnalysesUsecase {
	return &AnalysesUsecase{store: store}
}

func (u *AnalysesUsecase) Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	return u.store.Recent(ctx, limit)
}

func (u *AnalysesUsecase) Feedback(ctx context.Context, req models.FeedbackRequest) error {
	return u.store.UpdateFeedback(ctx, req.AnalysisID, req.Success, req.Remark)
}

func (u *AnalysesUsecase) Delete(ctx context.Context, id string) error {
	return u.store.Delete(ctx, id)
}

// SettingsUsecase reads and updates account settings.
type SettingsUsecase struct {
	store domrepo.SettingsStore
}

func NewSettingsUsecase(store domrepo.SettingsStore) *SettingsUsecase {
	return &SettingsUsecase{store: store}
}

func (u *SettingsUsecase) Get(ctx context.Context) (models.Settings, error) {
	return u.store.Get(ctx)
}

func (u *SettingsUsecase) Save(ctx context.Context, s models.Settings) (models.Settings, error) {
	if err := u.store.Save(ctx, s); err != nil {
		return models.Settings{}, err
	}
	return s, nil
}

// ChatUsecase answers free-form questions about a market state.
type ChatUsecase struct {
	reasoner     domsvc.Reasoner
	defaultModel string
}

func NewChatUsecase(reasoner domsvc.Reasoner, defaultModel string) *ChatUsecase {
	return &ChatUsecase{reasoner: reasoner, defaultModel: defaultModel}
}

func (u *ChatUsecase) Ask(ctx context.Context, req models.ChatRequest) string {
	model := req.Model
	if model == "" {
		model = u.defaultModel
	}
	return u.reasoner.Chat(ctx, model, req.Question, req.State)
}
