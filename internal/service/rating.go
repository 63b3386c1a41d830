package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/rocketscienceinc/battleship-backend/internal/repository"
)

const ratingKFactor = 32

// RatingService applies Elo rating updates after finished games.
type RatingService struct {
	logger *slog.Logger
	users  repository.UserRepository
}

func NewRatingService(logger *slog.Logger, users repository.UserRepository) *RatingService {
	return &RatingService{
		logger: logger.With("component", "rating-service"),
		users:  users,
	}
}

// ExpectedScore - probability of the first player beating the second.
func ExpectedScore(rating, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-rating)/400))
}

// ApplyElo computes the post-game ratings of winner and loser. Ratings never
// drop below zero.
func ApplyElo(winner, loser int) (int, int) {
	winnerExpected := ExpectedScore(winner, loser)
	loserExpected := ExpectedScore(loser, winner)

	newWinner := winner + int(math.Round(ratingKFactor*(1-winnerExpected)))
	newLoser := loser + int(math.Round(ratingKFactor*(0-loserExpected)))

	if newLoser < 0 {
		newLoser = 0
	}

	return newWinner, newLoser
}

// UpdateAfterMatch moves rating points from loser to winner and bumps the
// win/loss tallies.
func (that *RatingService) UpdateAfterMatch(ctx context.Context, winnerID, loserID string) error {
	winner, err := that.users.GetByID(ctx, winnerID)
	if err != nil {
		return fmt.Errorf("failed to load winner: %w", err)
	}

	loser, err := that.users.GetByID(ctx, loserID)
	if err != nil {
		return fmt.Errorf("failed to load loser: %w", err)
	}

	oldWinner, oldLoser := winner.Rating, loser.Rating
	winner.Rating, loser.Rating = ApplyElo(winner.Rating, loser.Rating)
	winner.Wins++
	loser.Losses++

	if err = that.users.CreateOrUpdate(ctx, winner); err != nil {
		return fmt.Errorf("failed to save winner: %w", err)
	}

	if err = that.users.CreateOrUpdate(ctx, loser); err != nil {
		return fmt.Errorf("failed to save loser: %w", err)
	}

	that.logger.Info("ratings updated",
		"winner", winnerID, "winnerRating", fmt.Sprintf("%d->%d", oldWinner, winner.Rating),
		"loser", loserID, "loserRating", fmt.Sprintf("%d->%d", oldLoser, loser.Rating))

	return nil
}
