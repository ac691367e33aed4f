package badgerdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Tyrowin/gigboard/internal/store"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	// every call advances the clock so keys are strictly ordered
	clock := func() time.Time {
		s.now = s.now.Add(time.Second)
		return s.now
	}
	st, err := Open("", WithClock(clock))
	s.Require().NoError(err)
	s.store = st
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreSuite) mustCreateUser(name, email string) *store.User {
	user, err := s.store.CreateUser(s.ctx, name, email, "hash")
	s.Require().NoError(err)
	return user
}

func (s *StoreSuite) TestCreateUser() {
	s.T().Run("assigns id and default wallet", func(t *testing.T) {
		user, err := s.store.CreateUser(s.ctx, "Asha", "asha@campus.edu", "hash")
		require.NoError(t, err)

		assert.NotEmpty(t, user.ID)
		assert.Equal(t, float64(store.DefaultWallet), user.Wallet)
		assert.False(t, user.CreatedAt.IsZero())
	})

	s.T().Run("rejects duplicate email regardless of case", func(t *testing.T) {
		_, err := s.store.CreateUser(s.ctx, "Other", "ASHA@campus.edu", "hash")
		assert.ErrorIs(t, err, store.ErrConflict)
	})
}

func (s *StoreSuite) TestFindUser() {
	user := s.mustCreateUser("Ravi", "ravi@campus.edu")

	byEmail, err := s.store.FindUserByEmail(s.ctx, "Ravi@Campus.edu")
	s.Require().NoError(err)
	s.Equal(user.ID, byEmail.ID)
	s.Equal("hash", byEmail.PasswordHash)

	summary, err := s.store.FindUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(&store.UserSummary{ID: user.ID, Name: "Ravi"}, summary)

	_, err = s.store.FindUserByID(s.ctx, "missing")
	s.ErrorIs(err, store.ErrNotFound)

	_, err = s.store.FindUserByEmail(s.ctx, "nobody@campus.edu")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *StoreSuite) TestInsertGig() {
	owner := s.mustCreateUser("Meera", "meera@campus.edu")

	s.T().Run("persists normalized fields", func(t *testing.T) {
		gig, err := s.store.InsertGig(s.ctx, owner.ID, store.GigFields{
			Title:       "Logo design",
			Description: "Vector logo for your club",
			Tags:        []string{"#design", "#logo", "#design"},
			Price:       500,
		})
		require.NoError(t, err)

		assert.NotEmpty(t, gig.ID)
		assert.Equal(t, owner.ID, gig.OwnerID)
		assert.Equal(t, []string{"#design", "#logo"}, gig.Tags)
		assert.Equal(t, store.DefaultUnit, gig.Unit)
	})

	s.T().Run("rejects unknown owner", func(t *testing.T) {
		_, err := s.store.InsertGig(s.ctx, "ghost", store.GigFields{Title: "x", Description: "y"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func (s *StoreSuite) TestListGigsNewestFirst() {
	owner := s.mustCreateUser("Meera", "meera@campus.edu")
	for _, title := range []string{"first", "second", "third"} {
		_, err := s.store.InsertGig(s.ctx, owner.ID, store.GigFields{Title: title, Description: "d", Price: 1})
		s.Require().NoError(err)
	}

	gigs, err := s.store.ListGigs(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(gigs, 3)
	s.Equal("third", gigs[0].Title)
	s.Equal("first", gigs[2].Title)

	limited, err := s.store.ListGigs(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
	s.Equal("third", limited[0].Title)
}

func (s *StoreSuite) TestListGigsIncludesOwnerName() {
	alice := s.mustCreateUser("Alice", "alice@campus.edu")
	bob := s.mustCreateUser("Bob", "bob@campus.edu")
	_, err := s.store.InsertGig(s.ctx, alice.ID, store.GigFields{Title: "t", Description: "d", Price: 1})
	s.Require().NoError(err)
	_, err = s.store.InsertGig(s.ctx, bob.ID, store.GigFields{Title: "u", Description: "d", Price: 2})
	s.Require().NoError(err)

	gigs, err := s.store.ListGigs(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(gigs, 2)
	s.Require().NotNil(gigs[0].Owner)
	s.Equal(&store.UserSummary{ID: bob.ID, Name: "Bob"}, gigs[0].Owner)
	s.Require().NotNil(gigs[1].Owner)
	s.Equal(&store.UserSummary{ID: alice.ID, Name: "Alice"}, gigs[1].Owner)
	s.Equal(alice.ID, gigs[1].OwnerID)
}

func (s *StoreSuite) TestConversation() {
	u1 := s.mustCreateUser("One", "one@campus.edu")
	u2 := s.mustCreateUser("Two", "two@campus.edu")
	u3 := s.mustCreateUser("Three", "three@campus.edu")

	_, err := s.store.InsertMessage(s.ctx, u1.ID, u2.ID, "hi")
	s.Require().NoError(err)
	_, err = s.store.InsertMessage(s.ctx, u2.ID, u1.ID, "hello")
	s.Require().NoError(err)
	_, err = s.store.InsertMessage(s.ctx, u1.ID, u3.ID, "elsewhere")
	s.Require().NoError(err)

	messages, err := s.store.ListConversation(s.ctx, u2.ID, u1.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(messages, 2)
	s.Equal("hi", messages[0].Text)
	s.Equal("hello", messages[1].Text)

	latest, err := s.store.ListConversation(s.ctx, u1.ID, u2.ID, 1)
	s.Require().NoError(err)
	s.Require().Len(latest, 1)
	s.Equal("hello", latest[0].Text)
}

func (s *StoreSuite) TestInsertMessageRequiresKnownUsers() {
	u1 := s.mustCreateUser("One", "one@campus.edu")

	_, err := s.store.InsertMessage(s.ctx, u1.ID, "ghost", "hi")
	s.ErrorIs(err, store.ErrNotFound)

	_, err = s.store.InsertMessage(s.ctx, "ghost", u1.ID, "hi")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *StoreSuite) TestPingAfterClose() {
	st, err := Open("")
	s.Require().NoError(err)
	s.NoError(st.Ping(s.ctx))
	s.Require().NoError(st.Close())
	s.Error(st.Ping(s.ctx))
}
