package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"tutorly/internal/util"
	"tutorly/pkg/domain"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type TopicInput struct {
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Summary   string `json:"summary"`
	Position  int    `json:"position"`
	Published bool   `json:"published"`
}

func (a *App) ListTopics(ctx context.Context, includeDrafts bool) ([]domain.Topic, error) {
	return a.store.ListTopics(ctx, !includeDrafts)
}

// TopicBySlug returns a published topic with its sections. Attachment
// keys resolve to short-lived presigned download links.
func (a *App) TopicBySlug(ctx context.Context, slug string, includeDrafts bool) (domain.Topic, []domain.Section, error) {
	topic, ok, err := a.store.GetTopicBySlug(ctx, slug)
	if err != nil {
		return domain.Topic{}, nil, fmt.Errorf("load topic: %w", err)
	}
	if !ok || (!topic.Published && !includeDrafts) {
		return domain.Topic{}, nil, ErrNotFound
	}
	sections, err := a.store.ListSectionsByTopic(ctx, topic.ID)
	if err != nil {
		return domain.Topic{}, nil, fmt.Errorf("load sections: %w", err)
	}
	for i := range sections {
		if sections[i].AttachmentKey == "" || a.objects == nil {
			continue
		}
		url, err := a.objects.PresignGet(ctx, sections[i].AttachmentKey, a.cfg.PresignTTL)
		if err != nil {
			return domain.Topic{}, nil, fmt.Errorf("presign attachment: %w", err)
		}
		sections[i].AttachmentURL = url
	}
	return topic, sections, nil
}

func (a *App) CreateTopic(ctx context.Context, in TopicInput) (domain.Topic, error) {
	if err := validateTopicInput(in); err != nil {
		return domain.Topic{}, err
	}
	if _, ok, err := a.store.GetTopicBySlug(ctx, in.Slug); err != nil {
		return domain.Topic{}, fmt.Errorf("check slug: %w", err)
	} else if ok {
		return domain.Topic{}, fmt.Errorf("%w: slug already in use", ErrValidation)
	}
	now := time.Now().UTC()
	topic := domain.Topic{
		ID:        util.NewID(),
		Title:     in.Title,
		Slug:      in.Slug,
		Summary:   in.Summary,
		Position:  in.Position,
		Published: in.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveTopic(ctx, topic); err != nil {
		return domain.Topic{}, fmt.Errorf("save topic: %w", err)
	}
	return topic, nil
}

func (a *App) UpdateTopic(ctx context.Context, id string, in TopicInput) (domain.Topic, error) {
	if err := validateTopicInput(in); err != nil {
		return domain.Topic{}, err
	}
	topic, ok, err := a.store.GetTopicByID(ctx, id)
	if err != nil {
		return domain.Topic{}, fmt.Errorf("load topic: %w", err)
	}
	if !ok {
		return domain.Topic{}, ErrNotFound
	}
	if in.Slug != topic.Slug {
		if _, taken, err := a.store.GetTopicBySlug(ctx, in.Slug); err != nil {
			return domain.Topic{}, fmt.Errorf("check slug: %w", err)
		} else if taken {
			return domain.Topic{}, fmt.Errorf("%w: slug already in use", ErrValidation)
		}
	}
	topic.Title = in.Title
	topic.Slug = in.Slug
	topic.Summary = in.Summary
	topic.Position = in.Position
	topic.Published = in.Published
	topic.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveTopic(ctx, topic); err != nil {
		return domain.Topic{}, fmt.Errorf("save topic: %w", err)
	}
	return topic, nil
}

func (a *App) DeleteTopic(ctx context.Context, id string) error {
	_, ok, err := a.store.GetTopicByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load topic: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return a.store.DeleteTopic(ctx, id)
}

func validateTopicInput(in TopicInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if !slugPattern.MatchString(in.Slug) {
		return fmt.Errorf("%w: slug must be lowercase words joined by hyphens", ErrValidation)
	}
	return nil
}

type SectionInput struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Position int    `json:"position"`
}

func (a *App) CreateSection(ctx context.Context, topicID string, in SectionInput) (domain.Section, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Section{}, fmt.Errorf("%w: title required", ErrValidation)
	}
	if _, ok, err := a.store.GetTopicByID(ctx, topicID); err != nil {
		return domain.Section{}, fmt.Errorf("load topic: %w", err)
	} else if !ok {
		return domain.Section{}, ErrNotFound
	}
	now := time.Now().UTC()
	section := domain.Section{
		ID:        util.NewID(),
		TopicID:   topicID,
		Title:     in.Title,
		Body:      in.Body,
		Position:  in.Position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveSection(ctx, section); err != nil {
		return domain.Section{}, fmt.Errorf("save section: %w", err)
	}
	return section, nil
}

func (a *App) UpdateSection(ctx context.Context, id string, in SectionInput) (domain.Section, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Section{}, fmt.Errorf("%w: title required", ErrValidation)
	}
	section, ok, err := a.store.GetSectionByID(ctx, id)
	if err != nil {
		return domain.Section{}, fmt.Errorf("load section: %w", err)
	}
	if !ok {
		return domain.Section{}, ErrNotFound
	}
	section.Title = in.Title
	section.Body = in.Body
	section.Position = in.Position
	section.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveSection(ctx, section); err != nil {
		return domain.Section{}, fmt.Errorf("save section: %w", err)
	}
	return section, nil
}

func (a *App) DeleteSection(ctx context.Context, id string) error {
	section, ok, err := a.store.GetSectionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load section: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if section.AttachmentKey != "" && a.objects != nil {
		if err := a.objects.Delete(ctx, section.AttachmentKey); err != nil {
			return fmt.Errorf("delete attachment: %w", err)
		}
	}
	return a.store.DeleteSection(ctx, id)
}

// UploadSectionAttachment stores a file in the object store and links
// it to the section, replacing any previous attachment.
func (a *App) UploadSectionAttachment(ctx context.Context, sectionID, filename, contentType string, body io.Reader, size int64) (domain.Section, error) {
	if a.objects == nil {
		return domain.Section{}, fmt.Errorf("%w: attachments not configured", ErrValidation)
	}
	section, ok, err := a.store.GetSectionByID(ctx, sectionID)
	if err != nil {
		return domain.Section{}, fmt.Errorf("load section: %w", err)
	}
	if !ok {
		return domain.Section{}, ErrNotFound
	}

	key := fmt.Sprintf("sections/%s/%s%s", sectionID, util.NewID(), path.Ext(filename))
	if err := a.objects.Put(ctx, key, body, size, contentType); err != nil {
		return domain.Section{}, fmt.Errorf("store attachment: %w", err)
	}
	if section.AttachmentKey != "" {
		if err := a.objects.Delete(ctx, section.AttachmentKey); err != nil {
			return domain.Section{}, fmt.Errorf("remove old attachment: %w", err)
		}
	}
	section.AttachmentKey = key
	section.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveSection(ctx, section); err != nil {
		return domain.Section{}, fmt.Errorf("save section: %w", err)
	}
	return section, nil
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// SubmitReview records a rating for a published topic. Guests cannot
// review, and a second review from the same user replaces the first.
func (a *App) SubmitReview(ctx context.Context, user domain.User, slug string, in ReviewInput) (domain.Review, error) {
	if user.IsGuest() {
		return domain.Review{}, fmt.Errorf("%w: guests cannot review", ErrForbidden)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return domain.Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	topic, ok, err := a.store.GetTopicBySlug(ctx, slug)
	if err != nil {
		return domain.Review{}, fmt.Errorf("load topic: %w", err)
	}
	if !ok || !topic.Published {
		return domain.Review{}, ErrNotFound
	}
	review := domain.Review{
		ID:        util.NewID(),
		TopicID:   topic.ID,
		UserID:    user.ID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveReview(ctx, review); err != nil {
		return domain.Review{}, fmt.Errorf("save review: %w", err)
	}
	return review, nil
}

func (a *App) ListReviews(ctx context.Context, slug string) ([]domain.Review, error) {
	topic, ok, err := a.store.GetTopicBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}
	if !ok || !topic.Published {
		return nil, ErrNotFound
	}
	return a.store.ListReviewsByTopic(ctx, topic.ID)
}
