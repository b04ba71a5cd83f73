package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/gallery"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/ingestion"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/links"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/storage"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "eventalbum",
		Short:         "Upload, browse and download event photo galleries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.email, "email", "", "user email (overrides USER_EMAIL)")
	root.PersistentFlags().StringVar(&a.name, "name", "", "user name (overrides USER_NAME)")
	root.PersistentFlags().StringVar(&a.role, "role", "", "user role (overrides USER_ROLE)")

	root.AddCommand(
		newUploadCommand(a),
		newSelfieCommand(a),
		newListCommand(a),
		newEventsCommand(a),
		newDeleteCommand(a),
		newDownloadCommand(a),
		newLinksCommand(a),
	)
	return root
}

func newUploadCommand(a *app) *cobra.Command {
	var eventID string
	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload images to an event gallery, creating the event if --event is omitted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			identity, err := a.identity()
			if err != nil {
				return err
			}
			files, err := localFiles(a.fs, args)
			if err != nil {
				return err
			}
			svc, err := a.ingestionService(ctx)
			if err != nil {
				return err
			}

			res, err := svc.Upload(ctx, identity, ingestion.UploadRequest{
				EventID: model.EventID(eventID),
				Files:   files,
			})
			stderr := cmd.ErrOrStderr()
			if res.SelfiesExcluded() {
				fmt.Fprintf(stderr, "Selfies go to the selfie intake, not the gallery. Skipped: %s\n", strings.Join(res.Excluded, ", "))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stderr, "Uploaded %d images to event %s\n", len(res.URLs), res.EventID)
			for _, u := range res.URLs {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "event id (a new one is assigned when empty)")
	return cmd
}

func newSelfieCommand(a *app) *cobra.Command {
	var eventID string
	cmd := &cobra.Command{
		Use:   "selfie FILE",
		Short: "Upload a selfie to an existing event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			identity, err := a.identity()
			if err != nil {
				return err
			}
			store, err := a.objectStore(ctx)
			if err != nil {
				return err
			}
			id := model.EventID(eventID)
			exists, err := gallery.NewLister(store).EventExists(ctx, identity, id)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s", model.ErrEventNotFound, id)
			}

			f, err := localFile(a.fs, args[0])
			if err != nil {
				return err
			}
			svc, err := a.ingestionService(ctx)
			if err != nil {
				return err
			}
			_, url, err := svc.UploadSelfie(ctx, identity, id, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Selfie uploaded to event %s\n", id)
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var (
		eventID string
		selfies bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the images of an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			identity, err := a.identity()
			if err != nil {
				return err
			}
			store, err := a.objectStore(ctx)
			if err != nil {
				return err
			}
			lister := gallery.NewLister(store)

			var view gallery.View
			if selfies {
				view, err = lister.Selfies(ctx, identity, model.EventID(eventID))
			} else {
				view, err = lister.List(ctx, identity, model.EventID(eventID))
			}
			if err != nil {
				return err
			}

			if len(view) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No images in event %s\n", eventID)
				return nil
			}
			out := cmd.OutOrStdout()
			for _, img := range view {
				fmt.Fprintf(out, "%s\t%s\t%s\n", displayPath(identity, img.Key), img.Key, img.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	cmd.Flags().BoolVar(&selfies, "selfies", false, "list the selfie intake instead of the gallery")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

// displayPath renders the role/owner view of a key, falling back to the raw key.
func displayPath(identity model.Identity, key string) string {
	k, err := storage.ParseKey(key)
	if err != nil {
		return key
	}
	return storage.DisplayPath(identity.RoleOrDefault(), identity.OwnerFolder(), k.Filename)
}

func newEventsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the events you have uploaded to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			identity, err := a.identity()
			if err != nil {
				return err
			}
			store, err := a.objectStore(ctx)
			if err != nil {
				return err
			}
			events, err := gallery.NewLister(store).Events(ctx, identity)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No events yet")
			}
			for _, e := range events {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	var eventID string
	cmd := &cobra.Command{
		Use:   "delete KEY...",
		Short: "Delete images from an event gallery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			identity, err := a.identity()
			if err != nil {
				return err
			}
			owner, err := identity.Owner()
			if err != nil {
				return err
			}
			id := model.EventID(eventID)
			for _, key := range args {
				if err := checkKeyInEvent(owner, id, key); err != nil {
					return err
				}
			}

			store, err := a.objectStore(ctx)
			if err != nil {
				return err
			}
			view, err := gallery.NewLister(store).List(ctx, identity, id)
			if err != nil {
				return err
			}
			manager := gallery.NewManager(store)
			for _, key := range args {
				view, err = manager.Delete(ctx, view, key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %s\n", key)
			}
			slog.InfoContext(ctx, "delete complete", "event_id", id, "deleted", len(args), "remaining", len(view))
			fmt.Fprintf(cmd.ErrOrStderr(), "%d images left in event %s\n", len(view), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

// checkKeyInEvent rejects keys outside the caller's event before any store call.
func checkKeyInEvent(owner string, eventID model.EventID, key string) error {
	k, err := storage.ParseKey(key)
	if err != nil {
		return &model.ValidationError{Filename: key, Reason: err.Error()}
	}
	if k.Owner != owner || k.EventID != eventID {
		return &model.ValidationError{Filename: key, Reason: fmt.Sprintf("does not belong to event %s", eventID)}
	}
	return nil
}

func newDownloadCommand(a *app) *cobra.Command {
	var (
		eventID string
		dir     string
	)
	cmd := &cobra.Command{
		Use:   "download [URL...]",
		Short: "Download gallery images to a local directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			urls := args
			switch {
			case eventID != "" && len(args) > 0:
				return fmt.Errorf("pass either --event or URLs, not both")
			case eventID != "":
				identity, err := a.identity()
				if err != nil {
					return err
				}
				store, err := a.objectStore(ctx)
				if err != nil {
					return err
				}
				view, err := gallery.NewLister(store).List(ctx, identity, model.EventID(eventID))
				if err != nil {
					return err
				}
				urls = view.URLs()
			case len(args) == 0:
				return fmt.Errorf("nothing to download: pass URLs or --event")
			default:
				// URLs alone need no store, so a partial config only costs the tunables
				if _, err := a.config(); err != nil {
					slog.DebugContext(ctx, "using default download settings", "error", err)
				}
			}

			summary := a.downloader(dir).DownloadAll(ctx, urls)
			for _, saved := range summary.Saved {
				fmt.Fprintln(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Downloaded %d images. Failed to download %d\n", summary.SuccessCount, len(summary.FailedURLs))
			for i, u := range summary.FailedURLs {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", u, summary.Errors[i])
			}
			return summary.Err()
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "download every image of this event")
	cmd.Flags().StringVar(&dir, "dir", ".", "target directory")
	return cmd
}

func newLinksCommand(a *app) *cobra.Command {
	var (
		eventID string
		origin  string
	)
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Print the selfie intake and gallery links of an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.EventID(eventID)
			selfie, err := links.SelfieIntakePath(id)
			if err != nil {
				return err
			}
			view, err := links.GalleryPath(id)
			if err != nil {
				return err
			}
			if origin != "" {
				if selfie, err = links.Absolute(origin, selfie); err != nil {
					return err
				}
				if view, err = links.Absolute(origin, view); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "selfie\t%s\n", selfie)
			fmt.Fprintf(out, "gallery\t%s\n", view)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	cmd.Flags().StringVar(&origin, "origin", "", "base URL to make the links absolute")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
