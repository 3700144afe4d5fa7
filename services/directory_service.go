package services

import (
	"dm-gateway/contract"
	"dm-gateway/domain"

	"github.com/samber/lo"
)

// PageMeta describes a user-listing page.
type PageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// DirectoryService exposes the read side of the user directory: who am I,
// and who else is there to talk to.
type DirectoryService struct {
	directory contract.IUserDirectory
}

func NewDirectoryService(directory contract.IUserDirectory) *DirectoryService {
	return &DirectoryService{directory: directory}
}

func (s *DirectoryService) Me(userID string) (domain.Profile, error) {
	user, err := s.directory.GetUserByID(userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return user.Profile(), nil
}

// ListUsers returns every user except the requester, filtered by an
// optional name search, with the same silent limit clamping as history.
func (s *DirectoryService) ListUsers(requesterID, q string, limit, page int) ([]domain.Profile, PageMeta, error) {
	limit = clampLimit(limit)
	if page < 1 {
		page = 1
	}

	users, total, err := s.directory.ListUsers(requesterID, q, limit, page)
	if err != nil {
		return nil, PageMeta{}, err
	}

	profiles := lo.Map(users, func(u domain.User, _ int) domain.Profile {
		return u.Profile()
	})

	pages := (total + limit - 1) / limit
	return profiles, PageMeta{Total: total, Page: page, Limit: limit, Pages: pages}, nil
}
