package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"predmarket/events"
	"predmarket/models"
)

// MissionService owns mission progress recompute, claims and resets.
// Progress is pull-based: nothing updates rows when a bet lands, the
// tracker recomputes from source-of-truth stats whenever asked.
type MissionService struct {
	uowFactory   UnitOfWorkFactory
	subscription SubscriptionChecker
}

// NewMissionService creates a mission service. checker may be nil when
// subscription missions are not configured.
func NewMissionService(uowFactory UnitOfWorkFactory, checker SubscriptionChecker) *MissionService {
	return &MissionService{
		uowFactory:   uowFactory,
		subscription: checker,
	}
}

// MissionStatus pairs a mission with one user's recomputed progress.
type MissionStatus struct {
	Mission  *models.Mission
	Progress *models.UserMission
}

// GetUserMissions recomputes and returns the user's progress on every
// active mission. Completion is sticky: recompute can only raise it.
func (s *MissionService) GetUserMissions(ctx context.Context, userID int64) ([]*MissionStatus, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	missions, err := uow.MissionRepository().ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var statuses []*MissionStatus
	for _, mission := range missions {
		progress, err := s.recompute(ctx, uow, user, mission)
		if err != nil {
			log.WithError(err).WithField("missionID", mission.ID).Warn("Skipping mission with bad requirements")
			continue
		}
		statuses = append(statuses, &MissionStatus{Mission: mission, Progress: progress})
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return statuses, nil
}

// recompute evaluates the mission predicate against current stats and
// persists the result.
func (s *MissionService) recompute(ctx context.Context, uow UnitOfWork, user *models.User, mission *models.Mission) (*models.UserMission, error) {
	req, err := mission.DecodeRequirement()
	if err != nil {
		return nil, err
	}

	progress, err := s.measure(ctx, uow, user, req)
	if err != nil {
		return nil, err
	}
	completed := progress >= requiredCount(req)

	if err := uow.MissionRepository().UpsertProgress(ctx, user.ID, mission.ID, progress, completed); err != nil {
		return nil, err
	}
	return uow.MissionRepository().GetProgress(ctx, user.ID, mission.ID)
}

// measure returns the current value of the predicate's underlying stat.
func (s *MissionService) measure(ctx context.Context, uow UnitOfWork, user *models.User, req *models.MissionRequirement) (int64, error) {
	now := time.Now().UTC()
	switch req.Kind {
	case models.RequirementBetsCount:
		return user.TotalBets, nil
	case models.RequirementWinsCount:
		return user.TotalWins, nil
	case models.RequirementWinStreak:
		return user.WinStreak, nil
	case models.RequirementReferralsCount:
		return uow.UserRepository().CountReferrals(ctx, user.ID)
	case models.RequirementCategoryBets:
		return uow.BetRepository().CountByUser(ctx, user.ID, req.Category, time.Time{})
	case models.RequirementDailyBets:
		return uow.BetRepository().CountByUser(ctx, user.ID, "", startOfDayUTC(now))
	case models.RequirementWeeklyBets:
		return uow.BetRepository().CountByUser(ctx, user.ID, "", now.AddDate(0, 0, -7))
	case models.RequirementSubscription:
		if s.subscription == nil {
			return 0, nil
		}
		subscribed, err := s.subscription.IsSubscribed(ctx, user.TelegramID, req.ChannelID, req.ChannelUsername)
		if err != nil {
			// Checker outages must not fail the whole mission list.
			log.WithError(err).WithField("userID", user.ID).Warn("Subscription check failed")
			return 0, nil
		}
		if subscribed {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown requirement kind %q", req.Kind)
	}
}

func requiredCount(req *models.MissionRequirement) int64 {
	if req.Kind == models.RequirementSubscription {
		return 1
	}
	return req.Count
}

// ClaimReward credits a completed mission's reward exactly once. The
// claimed flag flips in the same transaction as the credit.
func (s *MissionService) ClaimReward(ctx context.Context, userID, missionID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	mission, err := uow.MissionRepository().GetByID(ctx, missionID)
	if err != nil {
		return err
	}
	if mission == nil {
		return fmt.Errorf("%w: mission %d", ErrNotFound, missionID)
	}

	progress, err := s.recompute(ctx, uow, user, mission)
	if err != nil {
		return err
	}
	if !progress.Completed {
		return ErrMissionNotCompleted
	}
	if progress.Claimed {
		return ErrAlreadyClaimed
	}

	claimed, err := uow.MissionRepository().MarkClaimed(ctx, userID, missionID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !claimed {
		// Lost the race to a concurrent claim.
		return ErrAlreadyClaimed
	}

	if err := creditBalance(ctx, uow, userID, mission.RewardCurrency, mission.RewardAmount,
		models.TransactionTypeMission, fmt.Sprintf("Mission reward: %s", mission.Title), &mission.ID); err != nil {
		return err
	}

	uow.EventBus().Publish(events.MissionClaimedEvent{
		UserID:    userID,
		MissionID: missionID,
		Reward:    mission.RewardAmount,
		Currency:  mission.RewardCurrency,
	})

	if err := uow.Commit(ctx); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"userID":    userID,
		"missionID": missionID,
		"reward":    mission.RewardAmount.String(),
		"currency":  mission.RewardCurrency,
	}).Info("Mission reward claimed")

	return nil
}

// ResetMissions wipes progress rows for all missions of the given cadence.
func (s *MissionService) ResetMissions(ctx context.Context, missionType models.MissionType) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	reset, err := uow.MissionRepository().ResetProgressByType(ctx, missionType)
	if err != nil {
		return 0, err
	}
	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"missionType": missionType,
		"rows":        reset,
	}).Info("Mission progress reset")

	return reset, nil
}
