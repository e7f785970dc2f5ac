//go:build integration

package repository_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"subscriptions-go/internal/models"
	"subscriptions-go/internal/repository"
	"subscriptions-go/internal/testutil"
)

type PostgresRepositorySuite struct {
	suite.Suite
	repo *repository.PostgresSubscriberRepository
	exec func(query string) error
}

func TestPostgresRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRepositorySuite))
}

func (s *PostgresRepositorySuite) SetupSuite() {
	db := testutil.SetupTestDB(s.T())
	s.repo = repository.NewPostgresSubscriberRepository(db)
	s.exec = func(query string) error {
		_, err := db.Exec(query)
		return err
	}
}

func (s *PostgresRepositorySuite) SetupTest() {
	s.Require().NoError(s.exec("TRUNCATE subscriptions"))
}

func (s *PostgresRepositorySuite) account(name, email string) models.ParsedAccount {
	account, err := models.ParseAccount(name, email)
	s.Require().NoError(err)
	return account
}

func (s *PostgresRepositorySuite) TestConcurrentInsertSameEmail() {
	ctx := context.Background()
	account := s.account("Alice", "race@example.com")
	const goroutines = 25

	var wg sync.WaitGroup
	var created, duplicates atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.repo.Insert(ctx, account)
			if err == nil {
				created.Add(1)
			} else if errors.Is(err, repository.ErrDuplicateEmail) {
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), duplicates.Load())
}

func (s *PostgresRepositorySuite) TestEmailUniquenessIgnoresCase() {
	ctx := context.Background()
	_, err := s.repo.Insert(ctx, s.account("Alice", "alice@example.com"))
	s.Require().NoError(err)

	_, err = s.repo.Insert(ctx, s.account("Alice", "ALICE@example.com"))
	s.ErrorIs(err, repository.ErrDuplicateEmail)
}

func (s *PostgresRepositorySuite) TestConcurrentActivation() {
	ctx := context.Background()
	sub, err := s.repo.Insert(ctx, s.account("Alice", "a@b.com"))
	s.Require().NoError(err)

	var wg sync.WaitGroup
	var confirmed, notFound atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.repo.ActivateByToken(ctx, sub.ActivationToken)
			if err == nil {
				confirmed.Add(1)
			} else if errors.Is(err, repository.ErrNotFound) {
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), confirmed.Load())
	s.Equal(int32(9), notFound.Load())
}

func (s *PostgresRepositorySuite) TestListAllRoundTrip() {
	ctx := context.Background()

	all, err := s.repo.ListAll(ctx)
	s.Require().NoError(err)
	s.Empty(all)

	sub, err := s.repo.Insert(ctx, s.account("Alice", "a@b.com"))
	s.Require().NoError(err)

	all, err = s.repo.ListAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(sub.ID, all[0].ID)
	s.Equal(sub.ActivationToken, all[0].ActivationToken)
	s.False(all[0].Status)
}
