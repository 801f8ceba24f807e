package collect

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/aimaneth/blitzproof/internal/infrastructure/httpclient"
	"github.com/aimaneth/blitzproof/internal/score"
)

// CommunityStatsSource combines the CoinGecko community endpoint with the
// GitHub contributors API for developer activity.
type CommunityStatsSource struct {
	coingeckoURL string
	githubURL    string
	githubToken  string
	client       *httpclient.ClientPool
	breaker      *gobreaker.CircuitBreaker
}

// CommunityConfig configures the community data provider.
type CommunityConfig struct {
	CoinGeckoURL string
	GitHubURL    string
	GitHubToken  string
}

// NewCommunityStatsSource creates the community provider.
func NewCommunityStatsSource(config CommunityConfig, client *httpclient.ClientPool) *CommunityStatsSource {
	if config.CoinGeckoURL == "" {
		config.CoinGeckoURL = "https://api.coingecko.com/api/v3"
	}
	if config.GitHubURL == "" {
		config.GitHubURL = "https://api.github.com"
	}
	return &CommunityStatsSource{
		coingeckoURL: config.CoinGeckoURL,
		githubURL:    config.GitHubURL,
		githubToken:  config.GitHubToken,
		client:       client,
		breaker:      newBreaker("community"),
	}
}

type communityCoin struct {
	CommunityData struct {
		TwitterFollowers     int     `json:"twitter_followers"`
		TelegramChannelUsers int     `json:"telegram_channel_user_count"`
		RedditSubscribers    int     `json:"reddit_subscribers"`
		SentimentVotesUp     float64 `json:"sentiment_votes_up_percentage"`
	} `json:"community_data"`
	Links struct {
		ReposURL struct {
			Github []string `json:"github"`
		} `json:"repos_url"`
	} `json:"links"`
}

// FetchCommunityData retrieves social and developer activity for one token.
// A GitHub lookup failure only zeroes the contributor count; the social
// signals still come through.
func (s *CommunityStatsSource) FetchCommunityData(ctx context.Context, tokenID string) (score.CommunityData, error) {
	return execute(s.breaker, func() (score.CommunityData, error) {
		endpoint := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&market_data=false&developer_data=false",
			s.coingeckoURL, url.PathEscape(tokenID))

		var coin communityCoin
		if err := s.client.GetJSON(ctx, endpoint, nil, &coin); err != nil {
			return score.CommunityData{}, fmt.Errorf("community: %w", err)
		}

		cd := coin.CommunityData
		out := score.CommunityData{
			TwitterFollowers: cd.TwitterFollowers,
			TelegramMembers:  cd.TelegramChannelUsers,
			DiscordMembers:   cd.RedditSubscribers,
			SocialEngagement: cd.SentimentVotesUp,
		}

		if repos := coin.Links.ReposURL.Github; len(repos) > 0 {
			contributors, err := s.countContributors(ctx, repos[0])
			if err != nil {
				log.Warn().Err(err).Str("token_id", tokenID).Msg("GitHub contributor lookup failed")
			} else {
				out.GithubContributors = contributors
			}
		}

		return out, nil
	})
}

// countContributors counts contributors on the project's primary repository.
func (s *CommunityStatsSource) countContributors(ctx context.Context, repoURL string) (int, error) {
	u, err := url.Parse(repoURL)
	if err != nil || u.Path == "" {
		return 0, fmt.Errorf("unusable repo url %q", repoURL)
	}

	endpoint := fmt.Sprintf("%s/repos%s/contributors?per_page=100", s.githubURL, u.Path)

	var header map[string][]string
	if s.githubToken != "" {
		header = map[string][]string{"Authorization": {"Bearer " + s.githubToken}}
	}

	var contributors []struct {
		Login string `json:"login"`
	}
	if err := s.client.GetJSON(ctx, endpoint, header, &contributors); err != nil {
		return 0, fmt.Errorf("github: %w", err)
	}

	return len(contributors), nil
}
