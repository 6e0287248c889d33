package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/plated/internal/app"
	"github.com/matheus3301/plated/internal/lock"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	verboseFlag := flag.Bool("v", false, "log to stderr")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var a *app.App
	fxApp := fx.New(
		app.Module(app.Params{Profile: profileName, Verbose: *verboseFlag}),
		fx.Populate(&a),
		fx.NopLogger,
	)
	if err := fxApp.Err(); err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			fmt.Fprintf(os.Stderr, "error: profile %q is in use by PID %d\n", profileName, held.PID)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := fxApp.Start(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	err := run(ctx, a, args, *jsonFlag)
	_ = fxApp.Stop(context.Background())
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: plated [--profile <name>] [--json] [-v] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login <token>                  Store a bearer credential")
	fmt.Fprintln(os.Stderr, "  logout                         Remove the stored credential")
	fmt.Fprintln(os.Stderr, "  feed [page] [type]             Show a feed page")
	fmt.Fprintln(os.Stderr, "  like <post>                    Toggle like on a post")
	fmt.Fprintln(os.Stderr, "  save <post>                    Toggle bookmark on a post")
	fmt.Fprintln(os.Stderr, "  comments <post>                List comments")
	fmt.Fprintln(os.Stderr, "  comment <post> <text>          Add a comment")
	fmt.Fprintln(os.Stderr, "  inbox                          List conversations")
	fmt.Fprintln(os.Stderr, "  read <conversation>            Show and mark a conversation read")
	fmt.Fprintln(os.Stderr, "  send <conversation> <text>     Send a message")
	fmt.Fprintln(os.Stderr, "  challenges [id]                List challenges or show one")
	fmt.Fprintln(os.Stderr, "  start <challenge>              Start a challenge")
	fmt.Fprintln(os.Stderr, "  cook <challenge> [image [note]] Cook a started challenge, optionally with proof")
	fmt.Fprintln(os.Stderr, "  proofs <recipe>                Show proof stats for a recipe")
	fmt.Fprintln(os.Stderr, "  cooked <recipe>                Show who cooked a recipe")
	fmt.Fprintln(os.Stderr, "  tracks                         Show skill track progress")
	fmt.Fprintln(os.Stderr, "  badges                         Show the badge catalog")
	fmt.Fprintln(os.Stderr, "  rewards                        Show progression")
	fmt.Fprintln(os.Stderr, "  daily                          Show the chaos ingredient")
	fmt.Fprintln(os.Stderr, "  squads                         Show the squads leaderboard")
	fmt.Fprintln(os.Stderr, "  squad [create <name>|join <code>|leave]")
}

func run(ctx context.Context, a *app.App, args []string, jsonOut bool) error {
	switch args[0] {
	case "login":
		if len(args) < 2 {
			return usage("plated login <token>")
		}
		return a.Remote.SignIn(args[1])
	case "logout":
		return a.Remote.SignOut()
	case "feed":
		return cmdFeed(ctx, a, args[1:], jsonOut)
	case "like":
		if len(args) < 2 {
			return usage("plated like <post>")
		}
		return cmdEngage(ctx, a, args[1], a.Feed.Like)
	case "save":
		if len(args) < 2 {
			return usage("plated save <post>")
		}
		return cmdEngage(ctx, a, args[1], a.Feed.Save)
	case "comments":
		if len(args) < 2 {
			return usage("plated comments <post>")
		}
		comments, err := a.Feed.LoadComments(ctx, args[1])
		if err != nil {
			return err
		}
		if jsonOut {
			return outputJSON(comments)
		}
		for _, c := range comments {
			fmt.Printf("%-16s %s\n", "@"+c.User.Username, c.Content)
		}
		return nil
	case "comment":
		if len(args) < 3 {
			return usage("plated comment <post> <text>")
		}
		c, err := a.Feed.AddComment(ctx, args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("Comment %s posted.\n", c.ID)
		return nil
	case "inbox":
		return cmdInbox(ctx, a, jsonOut)
	case "read":
		if len(args) < 2 {
			return usage("plated read <conversation>")
		}
		return cmdRead(ctx, a, args[1], jsonOut)
	case "send":
		if len(args) < 3 {
			return usage("plated send <conversation> <text>")
		}
		msg, err := a.Messaging.Send(ctx, args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("Sent %s (%s).\n", msg.ID, msg.Status)
		return nil
	case "challenges":
		if len(args) > 1 {
			return cmdChallenge(ctx, a, args[1], jsonOut)
		}
		return cmdChallenges(ctx, a, jsonOut)
	case "start":
		if len(args) < 2 {
			return usage("plated start <challenge>")
		}
		if err := a.Gamification.LoadChallenges(ctx); err != nil {
			return err
		}
		if err := a.Gamification.StartChallenge(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("Challenge %s started.\n", args[1])
		return nil
	case "cook":
		if len(args) < 2 {
			return usage("plated cook <challenge> [image [note]]")
		}
		return cmdCook(ctx, a, args[1:], jsonOut)
	case "proofs":
		if len(args) < 2 {
			return usage("plated proofs <recipe>")
		}
		st, err := a.Gamification.LoadProofStats(ctx, args[1])
		if err != nil {
			return err
		}
		if jsonOut {
			return outputJSON(st)
		}
		fmt.Printf("Cooks: %d  With proof: %d  Verified: %d\n", st.TotalCooks, st.WithProof, st.VerifiedProofs)
		return nil
	case "cooked":
		if len(args) < 2 {
			return usage("plated cooked <recipe>")
		}
		rc, err := a.Gamification.LoadRecipeCompletions(ctx, args[1])
		if err != nil {
			return err
		}
		if jsonOut {
			return outputJSON(rc)
		}
		fmt.Printf("%d cooks\n", rc.Count)
		for _, u := range rc.Users {
			fmt.Printf("  @%-20s %s\n", u.Username, u.CreatedAt.Format(time.DateOnly))
		}
		return nil
	case "tracks":
		if err := a.Gamification.LoadSkillTracks(ctx); err != nil {
			return err
		}
		tracks := a.Gamification.Store().Snapshot().SkillTracks
		if jsonOut {
			return outputJSON(tracks)
		}
		for _, t := range tracks {
			done := ""
			if t.CompletedAt != nil {
				done = " done"
			}
			fmt.Printf("%s %-22s %d/%d%s\n", t.Icon, t.Name, t.CompletedRecipes, t.TotalRecipes, done)
		}
		return nil
	case "badges":
		return cmdBadges(ctx, a, jsonOut)
	case "rewards":
		return cmdRewards(ctx, a, jsonOut)
	case "daily":
		if err := a.Gamification.LoadDailyIngredient(ctx); err != nil {
			return err
		}
		d := a.Gamification.Store().Snapshot().DailyIngredient
		if jsonOut {
			return outputJSON(d)
		}
		state := "inactive"
		if d.Active {
			state = "active"
		}
		fmt.Printf("%s: %s x%.1f (%s)\n", d.Date, d.Ingredient, d.Multiplier, state)
		return nil
	case "squads":
		if err := a.Gamification.LoadSquads(ctx); err != nil {
			return err
		}
		board := a.Gamification.Store().Snapshot().Leaderboard
		if jsonOut {
			return outputJSON(board)
		}
		for _, s := range board {
			fmt.Printf("#%-3d %-20s %6d weekly %8d total\n", s.Rank, s.Name, s.WeeklyPoints, s.TotalPoints)
		}
		return nil
	case "squad":
		return cmdSquad(ctx, a, args[1:], jsonOut)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func usage(s string) error {
	return fmt.Errorf("usage: %s", s)
}

func cmdFeed(ctx context.Context, a *app.App, args []string, jsonOut bool) error {
	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid page %q", args[0])
		}
		page = n
	}
	if len(args) > 1 {
		a.Feed.Store().SetFilter(model.FeedFilter{Type: args[1]})
	}
	if err := a.Feed.LoadPage(ctx, page); err != nil {
		return err
	}
	st := a.Feed.Store().Snapshot()
	if jsonOut {
		return outputJSON(st.Posts)
	}
	for _, p := range st.Posts {
		flags := ""
		if p.Liked {
			flags += "♥"
		}
		if p.Saved {
			flags += "★"
		}
		fmt.Printf("%-10s %-40s %4d likes %3d comments %s\n", p.ID, p.Title, p.LikesCount, p.CommentsCount, flags)
	}
	if st.HasMore {
		fmt.Printf("More: plated feed %d\n", st.Page+1)
	}
	return nil
}

func cmdEngage(ctx context.Context, a *app.App, postID string, action func(context.Context, string) error) error {
	if err := a.Feed.LoadPage(ctx, 1); err != nil {
		return err
	}
	if err := action(ctx, postID); err != nil {
		return err
	}
	p, _ := a.Feed.Store().Post(postID)
	fmt.Printf("%s: liked=%v saved=%v likes=%d\n", p.ID, p.Liked, p.Saved, p.LikesCount)
	return nil
}

func cmdInbox(ctx context.Context, a *app.App, jsonOut bool) error {
	if err := a.Messaging.LoadConversations(ctx); err != nil {
		return err
	}
	if err := a.Messaging.RefreshUnread(ctx); err != nil {
		return err
	}
	st := a.Messaging.Store().Snapshot()
	if jsonOut {
		return outputJSON(st.Conversations)
	}
	fmt.Printf("Unread: %d\n", st.UnreadCount)
	for _, c := range st.Conversations {
		preview := ""
		if c.LastMessage != nil {
			preview = c.LastMessage.Content
		}
		fmt.Printf("%-10s %3d  %s\n", c.ID, c.UnreadCount, preview)
	}
	return nil
}

func cmdRead(ctx context.Context, a *app.App, convID string, jsonOut bool) error {
	if err := a.Messaging.LoadConversations(ctx); err != nil {
		return err
	}
	if err := a.Messaging.OpenConversation(ctx, convID); err != nil {
		return err
	}
	defer a.Messaging.CloseConversation()
	msgs := a.Messaging.Store().Snapshot().Messages[convID]
	if jsonOut {
		return outputJSON(msgs)
	}
	for _, m := range msgs {
		fmt.Printf("%s %-12s %s\n", m.CreatedAt.Format("15:04"), m.SenderID, m.Content)
	}
	return nil
}

func cmdChallenges(ctx context.Context, a *app.App, jsonOut bool) error {
	if err := a.Gamification.LoadChallenges(ctx); err != nil {
		return err
	}
	list := a.Gamification.Store().Snapshot().Challenges
	if jsonOut {
		return outputJSON(list)
	}
	for _, c := range list {
		fmt.Printf("%-14s %-24s %-7s %-12s %3d xp %3d coins\n", c.ID, c.Title, c.Difficulty, c.Status, c.Rewards.XP, c.Rewards.Coins)
	}
	return nil
}

func cmdChallenge(ctx context.Context, a *app.App, id string, jsonOut bool) error {
	c, err := a.Gamification.LoadChallenge(ctx, id)
	if err != nil {
		return err
	}
	if jsonOut {
		return outputJSON(c)
	}
	fmt.Printf("%s (%s, %s): %s\n", c.Title, c.Difficulty, c.Status, c.Description)
	fmt.Printf("Rewards: %d xp, %d coins\n", c.Rewards.XP, c.Rewards.Coins)
	if c.Recipe != nil {
		for i, st := range c.Recipe.Steps {
			fmt.Printf("  %d. %s\n", i+1, st.Text)
		}
	}
	return nil
}

func cmdCook(ctx context.Context, a *app.App, args []string, jsonOut bool) error {
	g := a.Gamification
	if err := g.LoadChallenges(ctx); err != nil {
		return err
	}
	if err := g.LoadDailyIngredient(ctx); err != nil {
		return err
	}
	c, ok := g.Store().Challenge(args[0])
	if ok && c.Status == model.ChallengeAvailable {
		if err := g.StartChallenge(ctx, c.ID); err != nil {
			return err
		}
	}
	sess, err := g.BeginCook(args[0])
	if err != nil {
		return err
	}
	for i := 0; i < sess.TotalSteps; i++ {
		if _, err := g.CompleteStep(i); err != nil {
			return err
		}
		if !jsonOut {
			fmt.Printf("Step %d/%d done.\n", i+1, sess.TotalSteps)
		}
	}
	res, err := g.FinishCook(ctx)
	if err != nil {
		return err
	}

	out := struct {
		Session    string                   `json:"session_id"`
		Completion *model.CompletionResult  `json:"completion"`
		Proof      *model.ProofSubmitResult `json:"proof,omitempty"`
		Verdict    model.VerificationStatus `json:"verification,omitempty"`
	}{Session: sess.ID, Completion: res}

	if len(args) > 1 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		note := strings.Join(args[2:], " ")
		out.Proof, err = g.SubmitProof(ctx, sess.ID, f, filepath.Base(args[1]), note)
		if err != nil {
			return err
		}
		out.Verdict, err = g.ResolveProof(sess.ID)
		if err != nil {
			return err
		}
	}

	if jsonOut {
		return outputJSON(out)
	}
	fmt.Printf("Earned %d coins and %d xp", res.Reward, res.XPGained)
	if res.ChaosBonus > 0 {
		fmt.Printf(" (chaos bonus %d)", res.ChaosBonus)
	}
	fmt.Println(".")
	if res.LevelUp {
		fmt.Println("Level up!")
	}
	if out.Proof != nil {
		fmt.Printf("Proof %s: %s\n", out.Proof.ProofID, out.Verdict)
	}
	return nil
}

func cmdRewards(ctx context.Context, a *app.App, jsonOut bool) error {
	if err := a.Gamification.LoadRewards(ctx); err != nil {
		return err
	}
	r := a.Gamification.Store().Snapshot().Rewards
	if jsonOut {
		return outputJSON(r)
	}
	fmt.Printf("Level:  %d (%d/%d xp)\n", r.Level, r.XP, r.NextLevelXP)
	fmt.Printf("Coins:  %d\n", r.Coins)
	fmt.Printf("Streak: %d days (best %d, %d freezes)\n", r.Streak.CurrentDays, r.Streak.LongestStreak, r.Streak.FreezeTokens)
	for _, b := range r.Badges {
		state := "locked"
		switch {
		case b.Earned():
			state = "earned"
		case b.Total > 0:
			state = fmt.Sprintf("%d/%d", b.Progress, b.Total)
		}
		fmt.Printf("  %-20s %s\n", b.Name, state)
	}
	return nil
}

func cmdBadges(ctx context.Context, a *app.App, jsonOut bool) error {
	if err := a.Gamification.LoadBadges(ctx, a.Self.ID); err != nil {
		return err
	}
	st := a.Gamification.Store().Snapshot()
	if jsonOut {
		return outputJSON(st.BadgeCatalog)
	}
	earned := make(map[string]bool, len(st.Rewards.Badges))
	for _, b := range st.Rewards.Badges {
		earned[b.ID] = b.Earned()
	}
	for _, b := range st.BadgeCatalog {
		mark := " "
		if earned[b.ID] {
			mark = "*"
		}
		fmt.Printf("%s %-16s %s\n", mark, b.Name, b.Description)
	}
	return nil
}

func cmdSquad(ctx context.Context, a *app.App, args []string, jsonOut bool) error {
	g := a.Gamification
	if len(args) == 0 {
		if err := g.LoadMySquad(ctx); err != nil {
			return err
		}
		st := g.Store().Snapshot()
		if jsonOut {
			return outputJSON(model.MySquad{Squad: st.Squad, Members: st.SquadMembers})
		}
		if st.Squad == nil {
			fmt.Println("Not in a squad.")
			return nil
		}
		fmt.Printf("%s (%d weekly, %d total)\n", st.Squad.Name, st.Squad.WeeklyPoints, st.Squad.TotalPoints)
		for _, m := range st.SquadMembers {
			fmt.Printf("  %-16s %-8s %d\n", m.Username, m.Role, m.WeeklyContribution)
		}
		return nil
	}
	switch args[0] {
	case "create":
		if len(args) < 2 {
			return usage("plated squad create <name>")
		}
		resp, err := g.CreateSquad(ctx, strings.Join(args[1:], " "), "")
		if err != nil {
			return err
		}
		fmt.Printf("Squad %s created. Invite code: %s\n", resp.Squad.Name, resp.InviteCode)
	case "join":
		if len(args) < 2 {
			return usage("plated squad join <code>")
		}
		resp, err := g.JoinSquad(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Joined %s.\n", resp.Squad.Name)
	case "leave":
		if err := g.LeaveSquad(ctx); err != nil {
			return err
		}
		fmt.Println("Left squad.")
	default:
		return fmt.Errorf("unknown squad subcommand: %s", args[0])
	}
	return nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
