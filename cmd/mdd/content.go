package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/panyam/mddclient/api"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (a *app) feedCmd() *cobra.Command {
	var sort string
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show posts from subscribed subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			posts, err := a.svc.GetFeed(cmd.Context(), api.FeedSort(sort))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), posts)
		},
	}
	cmd.Flags().StringVar(&sort, "sort", string(api.SortDesc), "Sort order by date: asc or desc")
	return cmd
}

func (a *app) subjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subjects",
		Short: "List subjects and whether you follow them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subjects, err := a.svc.ListSubjects(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), subjects)
		},
	}
}

func (a *app) subscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <subject-id>",
		Short: "Follow a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.Subscribe(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subscribed to subject %d\n", id)
			return nil
		},
	}
}

func (a *app) unsubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <subject-id>",
		Short: "Stop following a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.Unsubscribe(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unsubscribed from subject %d\n", id)
			return nil
		},
	}
}

func (a *app) postCmd() *cobra.Command {
	post := &cobra.Command{
		Use:   "post",
		Short: "Create or show posts",
	}

	var subjectID int64
	var title, content string
	create := &cobra.Command{
		Use:   "create",
		Short: "Publish a post in a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.svc.CreatePost(cmd.Context(), api.CreatePostRequest{SubjectID: subjectID, Title: title, Content: content})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created post %d\n", resp.ID)
			return nil
		},
	}
	create.Flags().Int64Var(&subjectID, "subject", 0, "Subject id")
	create.Flags().StringVar(&title, "title", "", "Post title")
	create.Flags().StringVar(&content, "content", "", "Post content")
	create.MarkFlagRequired("subject")

	show := &cobra.Command{
		Use:   "show <post-id>",
		Short: "Show a post with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			detail, err := a.svc.GetPost(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), detail)
		},
	}

	post.AddCommand(create, show)
	return post
}

func (a *app) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <post-id> <text>",
		Short: "Comment on a post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.AddComment(cmd.Context(), id, api.CreateCommentRequest{Content: args[1]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Commented on post %d\n", id)
			return nil
		},
	}
}
